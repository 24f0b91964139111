package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bluesky-social/nestedset/catalog"

	"github.com/brianvoe/gofakeit/v6"
	cli "github.com/urfave/cli/v2"
)

var seedCmd = &cli.Command{
	Name:  "seed",
	Usage: "fill the catalog with random categories",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "count",
			Usage: "number of categories to create",
			Value: 50,
		},
		&cli.IntFlag{
			Name:  "roots",
			Usage: "number of top-level categories",
			Value: 3,
		},
		&cli.IntFlag{
			Name:  "max-depth",
			Usage: "deepest level a generated category may sit at",
			Value: 4,
		},
		&cli.Int64Flag{
			Name:  "seed",
			Usage: "random seed; 0 picks one",
		},
	},
	Action: withCatalog(func(ctx context.Context, cctx *cli.Context, cat *catalog.Catalog) error {
		faker := gofakeit.New(cctx.Int64("seed"))
		created, err := seedCatalog(ctx, cat, faker, seedParams{
			Count:    cctx.Int("count"),
			Roots:    cctx.Int("roots"),
			MaxDepth: cctx.Int("max-depth"),
		})
		if err != nil {
			return err
		}
		fmt.Printf("created %d categories\n", created)
		return nil
	}),
}

type seedParams struct {
	Count    int
	Roots    int
	MaxDepth int
}

// seedCatalog creates Count categories. The first Roots are top-level; each
// later one goes under a random earlier category no deeper than MaxDepth-1.
func seedCatalog(ctx context.Context, cat *catalog.Catalog, faker *gofakeit.Faker, p seedParams) (int, error) {
	if p.Roots < 1 {
		p.Roots = 1
	}

	type placed struct {
		id    int64
		depth int
	}
	var parents []placed
	for i := 0; i < p.Count; i++ {
		name := faker.Adjective() + " " + faker.Noun()

		var parent *int64
		depth := 0
		if i >= p.Roots && len(parents) > 0 {
			pick := parents[faker.IntRange(0, len(parents)-1)]
			parent = &pick.id
			depth = pick.depth + 1
		}

		c, err := cat.Create(ctx, name, parent)
		if err != nil {
			return i, fmt.Errorf("creating %q: %w", name, err)
		}
		slog.Debug("seeded category", "id", c.ID, "name", c.Name, "depth", depth)
		if depth < p.MaxDepth {
			parents = append(parents, placed{id: c.ID, depth: depth})
		}
	}
	return p.Count, nil
}
