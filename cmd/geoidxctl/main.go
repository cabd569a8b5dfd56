// Command geoidxctl builds a BVH or kd-tree from a plain-text point/mesh
// file and exercises its query API, as a runnable driver for the
// github.com/hohehohe2/spatial library (the original C++ project this was
// ported from shipped no such driver of its own).
package main

import (
	"bufio"
	"fmt"
	"math"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.viam.com/utils"
	"gonum.org/v1/gonum/stat"

	"github.com/hohehohe2/spatial/bvh"
	"github.com/hohehohe2/spatial/geom"
	"github.com/hohehohe2/spatial/internal/metrics"
	"github.com/hohehohe2/spatial/kdtree"
)

var fs = afero.NewOsFs()

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "geoidxctl",
		Short: "Build and query BVH/kd-tree spatial indices from point data",
	}

	root.PersistentFlags().String("config", "", "config file path (accepted, but no subcommand reads it)")

	root.AddCommand(newBVHCmd(), newKDTreeCmd(), newBenchCmd())
	return root
}

func loadConfig(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	v.SetFs(fs)

	cfgPath, _ := cmd.Flags().GetString("config")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, "reading config file")
		}
	}
	return v, nil
}

func newLogger(cmd *cobra.Command) *zap.SugaredLogger {
	verbose, _ := cmd.Flags().GetBool("verbose")
	var l *zap.Logger
	if verbose {
		l, _ = zap.NewDevelopment()
	} else {
		l = zap.NewNop()
	}
	return l.Sugar()
}

func newBVHCmd() *cobra.Command {
	var meshPath string
	var queryMinStr, queryMaxStr string

	cmd := &cobra.Command{
		Use:   "bvh",
		Short: "Build a BVH from a triangle mesh file and run one overlap query",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(cmd)
			vertices, faces, err := readMesh(meshPath)
			if err != nil {
				return err
			}

			reg := prometheus.NewRegistry()
			recorder := metrics.NewPrometheusRecorder(reg)

			b := bvh.New(bvh.WithLogger(logger), bvh.WithRecorder(recorder))
			if err := b.Construct(vertices, faces); err != nil {
				return err
			}

			queryMin, err := parsePoint(queryMinStr)
			if err != nil {
				return errors.Wrap(err, "parsing --min")
			}
			queryMax, err := parsePoint(queryMaxStr)
			if err != nil {
				return errors.Wrap(err, "parsing --max")
			}

			results := b.QueryAabbOverwrap(nil, geom.NewAABB(queryMin, queryMax))
			fmt.Printf("%d triangles overlap the query box\n", len(results))
			return nil
		},
	}

	cmd.Flags().StringVar(&meshPath, "mesh", "", "path to a mesh file (vertex lines 'v x y z', face lines 'f i j k')")
	cmd.Flags().StringVar(&queryMinStr, "min", "0,0,0", "query box min corner, comma-separated")
	cmd.Flags().StringVar(&queryMaxStr, "max", "1,1,1", "query box max corner, comma-separated")
	cmd.Flags().Bool("verbose", false, "enable debug logging")
	_ = cmd.MarkFlagRequired("mesh")
	return cmd
}

func newKDTreeCmd() *cobra.Command {
	var pointsPath string
	var queryStr string
	var maxDist, eps float64
	var bucketSize uint32

	cmd := &cobra.Command{
		Use:   "kdtree",
		Short: "Build a kd-tree from a point file and run one nearest-neighbor query",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(cmd)
			points, err := readPoints(pointsPath)
			if err != nil {
				return err
			}

			reg := prometheus.NewRegistry()
			recorder := metrics.NewPrometheusRecorder(reg)

			tr, err := kdtree.New(kdtree.WithBucketSize(bucketSize), kdtree.WithLogger(logger), kdtree.WithRecorder(recorder))
			if err != nil {
				return err
			}
			tr.Construct(points)

			q, err := parsePoint(queryStr)
			if err != nil {
				return errors.Wrap(err, "parsing --point")
			}

			nn, ok, err := tr.Query(q, maxDist, eps)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("no point found within maxDist")
				return nil
			}
			fmt.Printf("nearest neighbor: %v\n", nn)
			return nil
		},
	}

	cmd.Flags().StringVar(&pointsPath, "points", "", "path to a point file ('x y z' per line)")
	cmd.Flags().StringVar(&queryStr, "point", "0,0,0", "query point, comma-separated")
	cmd.Flags().Float64Var(&maxDist, "max-dist", math.Inf(1), "maximum search radius")
	cmd.Flags().Float64Var(&eps, "eps", 0, "approximate-search error bound")
	cmd.Flags().Uint32Var(&bucketSize, "bucket-size", 24, "leaf bucket size")
	cmd.Flags().Bool("verbose", false, "enable debug logging")
	_ = cmd.MarkFlagRequired("points")
	return cmd
}

func newBenchCmd() *cobra.Command {
	var pointsPath string
	var workers int
	var queries int

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Fire concurrent kd-tree queries and report latency statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(cmd)
			points, err := readPoints(pointsPath)
			if err != nil {
				return err
			}

			tr, err := kdtree.New(kdtree.WithLogger(logger))
			if err != nil {
				return err
			}
			tr.Construct(points)

			latencies := make([]float64, queries)
			var mu sync.Mutex
			var wg sync.WaitGroup
			sem := make(chan struct{}, workers)

			rng := rand.New(rand.NewSource(1))
			for i := 0; i < queries; i++ {
				i := i
				q := geom.Point{X: rng.Float64() * 100, Y: rng.Float64() * 100, Z: rng.Float64() * 100}

				sem <- struct{}{}
				wg.Add(1)
				utils.PanicCapturingGo(func() {
					defer wg.Done()
					defer func() { <-sem }()

					start := time.Now()
					_, _, _ = tr.Query(q, math.Inf(1), 0)
					elapsed := time.Since(start).Seconds()

					mu.Lock()
					latencies[i] = elapsed
					mu.Unlock()
				})
			}
			wg.Wait()

			mean, std := stat.MeanStdDev(latencies, nil)
			fmt.Printf("queries=%d mean=%.9fs stddev=%.9fs\n", queries, mean, std)
			return nil
		},
	}

	cmd.Flags().StringVar(&pointsPath, "points", "", "path to a point file ('x y z' per line)")
	cmd.Flags().IntVar(&workers, "workers", 8, "max concurrent queries")
	cmd.Flags().IntVar(&queries, "queries", 1000, "number of queries to fire")
	cmd.Flags().Bool("verbose", false, "enable debug logging")
	_ = cmd.MarkFlagRequired("points")
	return cmd
}

func readPoints(path string) ([]geom.Point, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening points file")
	}
	defer f.Close()

	var points []geom.Point
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, errors.Errorf("malformed point line: %q", line)
		}
		p, err := parsePoint(strings.Join(fields, ","))
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, scanner.Err()
}

// readMesh reads a minimal Wavefront-OBJ-like format: "v x y z" vertex
// lines and "f i j k" triangle lines, with 0-based indices.
func readMesh(path string) ([]geom.Point, []uint32, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "opening mesh file")
	}
	defer f.Close()

	var vertices []geom.Point
	var faces []uint32

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(strings.TrimSpace(scanner.Text()))
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "v":
			if len(fields) != 4 {
				return nil, nil, errors.Errorf("malformed vertex line: %v", fields)
			}
			p, err := parsePoint(strings.Join(fields[1:], ","))
			if err != nil {
				return nil, nil, err
			}
			vertices = append(vertices, p)
		case "f":
			if len(fields) != 4 {
				return nil, nil, errors.Errorf("malformed face line: %v", fields)
			}
			for _, s := range fields[1:] {
				idx, err := strconv.ParseUint(s, 10, 32)
				if err != nil {
					return nil, nil, errors.Wrapf(err, "parsing face index %q", s)
				}
				faces = append(faces, uint32(idx))
			}
		}
	}
	return vertices, faces, scanner.Err()
}

func parsePoint(s string) (geom.Point, error) {
	fields := strings.Split(s, ",")
	if len(fields) != 3 {
		return geom.Point{}, errors.Errorf("expected 3 comma-separated components, got %q", s)
	}
	var vals [3]float64
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return geom.Point{}, errors.Wrapf(err, "parsing component %q", f)
		}
		vals[i] = v
	}
	return geom.Point{X: vals[0], Y: vals[1], Z: vals[2]}, nil
}
