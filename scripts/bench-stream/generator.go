package main

import (
	"io"
	"math/rand/v2"
	"strconv"

	"github.com/Sumatoshi-tech/shelfrank/pkg/command"
)

// generator is a command.Source producing a pseudo-random valid stream
// without materialising it. Inserted ids are their insertion ordinals, so
// queries can target any placed item without tracking ids.
type generator struct {
	rng        *rand.Rand
	total      int64
	queryRatio float64
	produced   int64
	placed     int64

	every      int64
	onBoundary func(done int64)
}

func newGenerator(total int64, queryRatio float64, seed uint64) *generator {
	return &generator{
		rng:        rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		total:      total,
		queryRatio: queryRatio,
	}
}

// Next implements command.Source.
func (g *generator) Next() (command.Command, error) {
	if g.produced >= g.total {
		return command.Command{}, io.EOF
	}

	if g.every > 0 && g.produced > 0 && g.produced%g.every == 0 && g.onBoundary != nil {
		g.onBoundary(g.produced)
	}

	g.produced++

	cmd := command.Command{Line: int(g.produced)}

	switch {
	case g.placed > 0 && g.rng.Float64() < g.queryRatio:
		cmd.Op = command.OpQuery
		cmd.ID = strconv.FormatInt(g.rng.Int64N(g.placed), 10)
	case g.rng.IntN(2) == 0:
		cmd.Op = command.OpPrepend
		cmd.ID = strconv.FormatInt(g.placed, 10)
		g.placed++
	default:
		cmd.Op = command.OpAppend
		cmd.ID = strconv.FormatInt(g.placed, 10)
		g.placed++
	}

	return cmd, nil
}
