package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/bluesky-social/nestedset/catalog"
	"github.com/bluesky-social/nestedset/models"
	"github.com/bluesky-social/nestedset/nestedset"

	"github.com/labstack/echo/v4"
)

type GenericError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type CategoryView struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	ParentID *int64 `json:"parentId"`
	Left     int64  `json:"lft"`
	Right    int64  `json:"rgt"`
	Depth    int64  `json:"depth"`
}

type TreeView struct {
	CategoryView
	Children []*TreeView `json:"children,omitempty"`
}

type CreateRequest struct {
	Name     string `json:"name"`
	ParentID *int64 `json:"parentId"`
}

type RenameRequest struct {
	Name string `json:"name"`
}

type MoveRequest struct {
	TargetID int64  `json:"targetId"`
	Position string `json:"position"`
}

type ReparentRequest struct {
	ParentID *int64 `json:"parentId"`
}

func viewOf(c *models.Category) CategoryView {
	return CategoryView{
		ID:       c.ID,
		Name:     c.Name,
		ParentID: c.ParentID,
		Left:     c.Lft,
		Right:    c.Rgt,
		Depth:    c.Depth,
	}
}

func treeViews(forest []*nestedset.TreeNode) []*TreeView {
	out := make([]*TreeView, 0, len(forest))
	for _, t := range forest {
		out = append(out, &TreeView{
			CategoryView: viewOf(models.CategoryFromNode(t.Node)),
			Children:     treeViews(t.Children),
		})
	}
	return out
}

// errorHandler maps engine and catalog errors to HTTP statuses.
func (srv *Server) errorHandler(err error, c echo.Context) {
	// request logging middleware hands the error over before echo does
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		c.JSON(he.Code, GenericError{Error: http.StatusText(he.Code), Message: fmt.Sprintf("%v", he.Message)})
		return
	}

	code, name := http.StatusInternalServerError, "InternalError"
	switch {
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, nestedset.ErrNodeNotFound):
		code, name = http.StatusNotFound, "NotFound"
	case errors.Is(err, nestedset.ErrInvalidArgument), errors.Is(err, nestedset.ErrUnresolvedTarget):
		code, name = http.StatusBadRequest, "InvalidRequest"
	case errors.Is(err, nestedset.ErrInvalidMove):
		code, name = http.StatusConflict, "InvalidMove"
	case errors.Is(err, nestedset.ErrInvalidState):
		code, name = http.StatusConflict, "InvalidState"
	}
	if code == http.StatusInternalServerError {
		srv.logger.Error("request failed", "path", c.Path(), "err", err)
	}
	c.JSON(code, GenericError{Error: name, Message: err.Error()})
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid category id")
	}
	return id, nil
}

func (srv *Server) HandleHealthCheck(c echo.Context) error {
	if err := srv.cat.Ping(c.Request().Context()); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]any{"status": "error", "error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{"status": "ok"})
}

// HandleList returns every category in preorder, or the nested forest with
// ?tree=true.
func (srv *Server) HandleList(c echo.Context) error {
	ctx := c.Request().Context()

	if c.QueryParam("tree") == "true" {
		forest, err := srv.cat.Hierarchy(ctx, nil)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, treeViews(forest))
	}

	cats, err := srv.cat.List(ctx)
	if err != nil {
		return err
	}
	out := make([]CategoryView, len(cats))
	for i := range cats {
		out[i] = viewOf(&cats[i])
	}
	return c.JSON(http.StatusOK, out)
}

func (srv *Server) HandleCreate(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}

	cat, err := srv.cat.Create(c.Request().Context(), req.Name, req.ParentID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, viewOf(cat))
}

func (srv *Server) HandleGet(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	cat, err := srv.cat.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, viewOf(cat))
}

func (srv *Server) HandleRename(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req RenameRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}

	cat, err := srv.cat.Rename(c.Request().Context(), id, req.Name)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, viewOf(cat))
}

func (srv *Server) HandleDelete(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := srv.cat.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (srv *Server) HandleSubtree(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	forest, err := srv.cat.Hierarchy(c.Request().Context(), &id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, treeViews(forest))
}

func (srv *Server) HandlePath(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	path, err := srv.cat.Path(c.Request().Context(), id)
	if err != nil {
		return err
	}
	out := make([]CategoryView, len(path))
	for i, cat := range path {
		out[i] = viewOf(cat)
	}
	return c.JSON(http.StatusOK, out)
}

func (srv *Server) HandleMove(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req MoveRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if req.Position == "" {
		req.Position = string(nestedset.PositionChild)
	}
	pos, err := nestedset.ParsePosition(req.Position)
	if err != nil {
		return err
	}

	cat, err := srv.cat.Move(c.Request().Context(), id, req.TargetID, pos)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, viewOf(cat))
}

func (srv *Server) HandleReparent(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req ReparentRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	cat, err := srv.cat.Reparent(c.Request().Context(), id, req.ParentID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, viewOf(cat))
}

func (srv *Server) HandleCheck(c echo.Context) error {
	report, err := srv.cat.Check(c.Request().Context())
	if err != nil {
		return err
	}
	violations := make([]string, len(report.Violations))
	for i, v := range report.Violations {
		violations[i] = v.String()
	}
	return c.JSON(http.StatusOK, map[string]any{
		"ok":         report.OK(),
		"nodes":      report.Nodes,
		"roots":      report.Roots,
		"violations": violations,
	})
}

func (srv *Server) HandleRebuild(c echo.Context) error {
	changed, err := srv.cat.Rebuild(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"rewritten": changed})
}
