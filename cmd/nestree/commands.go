package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/bluesky-social/nestedset/catalog"
	"github.com/bluesky-social/nestedset/nestedset"

	cli "github.com/urfave/cli/v2"
)

var initCmd = &cli.Command{
	Name:  "init",
	Usage: "create the category table",
	Action: withCatalog(func(ctx context.Context, cctx *cli.Context, cat *catalog.Catalog) error {
		// openCatalog already migrated
		fmt.Println("ok")
		return nil
	}),
}

var addCmd = &cli.Command{
	Name:      "add",
	Usage:     "create a category, as a new root or under --parent",
	ArgsUsage: "<name>",
	Flags: []cli.Flag{
		&cli.Int64Flag{
			Name:  "parent",
			Usage: "id of the parent category",
		},
	},
	Action: withCatalog(func(ctx context.Context, cctx *cli.Context, cat *catalog.Catalog) error {
		name := strings.Join(cctx.Args().Slice(), " ")
		if name == "" {
			return fmt.Errorf("need a category name")
		}
		var parent *int64
		if cctx.IsSet("parent") {
			parent = nestedset.Int64(cctx.Int64("parent"))
		}
		c, err := cat.Create(ctx, name, parent)
		if err != nil {
			return err
		}
		fmt.Printf("%d\t%s\t[%d,%d]\n", c.ID, c.Name, c.Lft, c.Rgt)
		return nil
	}),
}

var renameCmd = &cli.Command{
	Name:      "rename",
	Usage:     "change the name of a category",
	ArgsUsage: "<id> <name>",
	Action: withCatalog(func(ctx context.Context, cctx *cli.Context, cat *catalog.Catalog) error {
		id, err := argID(cctx, 0)
		if err != nil {
			return err
		}
		name := strings.Join(cctx.Args().Slice()[1:], " ")
		if name == "" {
			return fmt.Errorf("need a category name")
		}
		_, err = cat.Rename(ctx, id, name)
		return err
	}),
}

var moveCmd = &cli.Command{
	Name:      "mv",
	Usage:     "move a category and its subtree relative to another",
	ArgsUsage: "<id> <target-id>",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "position",
			Usage: "where to put the category: child, left or right of the target",
			Value: string(nestedset.PositionChild),
		},
	},
	Action: withCatalog(func(ctx context.Context, cctx *cli.Context, cat *catalog.Catalog) error {
		id, err := argID(cctx, 0)
		if err != nil {
			return err
		}
		target, err := argID(cctx, 1)
		if err != nil {
			return err
		}
		pos, err := nestedset.ParsePosition(cctx.String("position"))
		if err != nil {
			return err
		}
		c, err := cat.Move(ctx, id, target, pos)
		if err != nil {
			return err
		}
		fmt.Printf("%d\t[%d,%d]\tdepth %d\n", c.ID, c.Lft, c.Rgt, c.Depth)
		return nil
	}),
}

var reparentCmd = &cli.Command{
	Name:      "reparent",
	Usage:     "set the parent of a category; with no parent it becomes a root",
	ArgsUsage: "<id> [parent-id]",
	Action: withCatalog(func(ctx context.Context, cctx *cli.Context, cat *catalog.Catalog) error {
		id, err := argID(cctx, 0)
		if err != nil {
			return err
		}
		var parent *int64
		if cctx.NArg() > 1 {
			p, err := argID(cctx, 1)
			if err != nil {
				return err
			}
			parent = &p
		}
		_, err = cat.Reparent(ctx, id, parent)
		return err
	}),
}

var removeCmd = &cli.Command{
	Name:      "rm",
	Usage:     "delete a category and everything below it",
	ArgsUsage: "<id>",
	Action: withCatalog(func(ctx context.Context, cctx *cli.Context, cat *catalog.Catalog) error {
		id, err := argID(cctx, 0)
		if err != nil {
			return err
		}
		return cat.Delete(ctx, id)
	}),
}

var showCmd = &cli.Command{
	Name:      "show",
	Usage:     "print the category forest, or the subtree of one category",
	ArgsUsage: "[id]",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "bounds",
			Usage: "include left/right bounds and depth",
		},
	},
	Action: withCatalog(func(ctx context.Context, cctx *cli.Context, cat *catalog.Catalog) error {
		var root *int64
		if cctx.NArg() > 0 {
			id, err := argID(cctx, 0)
			if err != nil {
				return err
			}
			root = &id
		}
		forest, err := cat.Hierarchy(ctx, root)
		if err != nil {
			return err
		}
		fmt.Print(nestedset.Render(forest, nodeLabel(cctx.Bool("bounds"))))
		return nil
	}),
}

var pathCmd = &cli.Command{
	Name:      "path",
	Usage:     "print the ancestors of a category",
	ArgsUsage: "<id>",
	Action: withCatalog(func(ctx context.Context, cctx *cli.Context, cat *catalog.Catalog) error {
		id, err := argID(cctx, 0)
		if err != nil {
			return err
		}
		path, err := cat.Path(ctx, id)
		if err != nil {
			return err
		}
		names := make([]string, len(path))
		for i, c := range path {
			names[i] = c.Name
		}
		fmt.Println(strings.Join(names, " / "))
		return nil
	}),
}

var checkCmd = &cli.Command{
	Name:  "check",
	Usage: "verify the nested set invariants of the category table",
	Action: withCatalog(func(ctx context.Context, cctx *cli.Context, cat *catalog.Catalog) error {
		report, err := cat.Check(ctx)
		if err != nil {
			return err
		}
		for _, v := range report.Violations {
			fmt.Println(v)
		}
		fmt.Printf("%d nodes, %d roots, %d violations\n", report.Nodes, report.Roots, len(report.Violations))
		if !report.OK() {
			return cli.Exit("tree is inconsistent; run rebuild", 1)
		}
		return nil
	}),
}

var rebuildCmd = &cli.Command{
	Name:  "rebuild",
	Usage: "renumber every tree from the parent pointers",
	Action: withCatalog(func(ctx context.Context, cctx *cli.Context, cat *catalog.Catalog) error {
		changed, err := cat.Rebuild(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("rewrote %d rows\n", changed)
		return nil
	}),
}

func argID(cctx *cli.Context, i int) (int64, error) {
	s := cctx.Args().Get(i)
	if s == "" {
		return 0, fmt.Errorf("missing category id argument")
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid category id %q: %w", s, err)
	}
	return id, nil
}

func nodeLabel(bounds bool) func(*nestedset.Node) string {
	return func(n *nestedset.Node) string {
		name, _ := n.Attrs["name"].(string)
		if !bounds {
			return fmt.Sprintf("%s (%d)", name, n.ID)
		}
		return fmt.Sprintf("%s (%d) [%d,%d] depth=%d", name, n.ID, n.Left, n.Right, n.Depth)
	}
}
