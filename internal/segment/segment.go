// Package segment splits large objects into independently encoded segments.
//
// The sizing plan comes from the driver's GetSegmentInfo, so segment and
// fragment sizes always match what the driver would produce for a single call.
// Segments are processed by a bounded pool of workers; each worker creates its
// own driver from the Factory because a driver must not be used from several
// goroutines at once.
package segment

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/piwi3910/nebulaec/internal/erasure/driver"
	"github.com/piwi3910/nebulaec/internal/metrics"
)

// Segmenter errors.
var (
	ErrInvalidSegmentSize = errors.New("segment size must be positive")
	ErrSizeMismatch       = errors.New("decoded size does not match object size")
	ErrSegmentCount       = errors.New("segment count does not match plan")
)

// Factory creates a new driver instance.
type Factory func() (driver.Driver, error)

// Object is an encoded object: one fragment set per segment.
type Object struct {
	Size     int                `json:"size"`
	Info     driver.SegmentInfo `json:"info"`
	Segments [][][]byte         `json:"-"`
}

// Segmenter encodes and decodes objects segment by segment.
type Segmenter struct {
	factory     Factory
	segmentSize int
	workers     int
}

// New creates a segmenter. workers <= 0 means GOMAXPROCS.
func New(factory Factory, segmentSize, workers int) (*Segmenter, error) {
	if segmentSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSegmentSize, segmentSize)
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	return &Segmenter{factory: factory, segmentSize: segmentSize, workers: workers}, nil
}

// Plan returns the segment plan for dataLen bytes.
func (s *Segmenter) Plan(dataLen int) (driver.SegmentInfo, error) {
	d, err := s.factory()
	if err != nil {
		return driver.SegmentInfo{}, fmt.Errorf("failed to create driver: %w", err)
	}
	defer func() { _ = d.Close() }()

	info, err := d.GetSegmentInfo(dataLen, s.segmentSize)
	if err != nil {
		return info, fmt.Errorf("failed to plan segments: %w", err)
	}

	return info, nil
}

// bounds returns the byte range of segment i.
func bounds(info driver.SegmentInfo, size, i int) (int, int) {
	start := i * info.SegmentSize
	if i == info.NumSegments-1 {
		return start, size
	}

	return start, start + info.SegmentSize
}

// Encode splits data according to the plan and encodes every segment.
func (s *Segmenter) Encode(ctx context.Context, data []byte) (*Object, error) {
	info, err := s.Plan(len(data))
	if err != nil {
		return nil, err
	}

	obj := &Object{
		Size:     len(data),
		Info:     info,
		Segments: make([][][]byte, info.NumSegments),
	}

	err = s.run(ctx, info.NumSegments, "encode", func(d driver.Driver, i int) error {
		start, end := bounds(info, len(data), i)

		fragments, err := d.Encode(data[start:end])
		if err != nil {
			return fmt.Errorf("segment %d: %w", i, err)
		}

		obj.Segments[i] = fragments

		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Debug().
		Int("size", obj.Size).
		Int("segments", info.NumSegments).
		Msg("Encoded object")

	return obj, nil
}

// Decode rebuilds the object. Segments may hold nil fragments for lost ones.
func (s *Segmenter) Decode(ctx context.Context, obj *Object) ([]byte, error) {
	if len(obj.Segments) != obj.Info.NumSegments {
		return nil, fmt.Errorf("%w: have %d, plan says %d", ErrSegmentCount, len(obj.Segments), obj.Info.NumSegments)
	}

	parts := make([][]byte, len(obj.Segments))

	err := s.run(ctx, len(obj.Segments), "decode", func(d driver.Driver, i int) error {
		data, err := d.Decode(obj.Segments[i])
		if err != nil {
			return fmt.Errorf("segment %d: %w", i, err)
		}

		parts[i] = data

		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, obj.Size)
	for _, p := range parts {
		out = append(out, p...)
	}

	if len(out) != obj.Size {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrSizeMismatch, len(out), obj.Size)
	}

	return out, nil
}

// Reconstruct rebuilds the fragments at indexes for every segment. The result
// holds one slice per segment, ordered like indexes after sorting.
func (s *Segmenter) Reconstruct(ctx context.Context, obj *Object, indexes []int) ([][][]byte, error) {
	out := make([][][]byte, len(obj.Segments))

	err := s.run(ctx, len(obj.Segments), "reconstruct", func(d driver.Driver, i int) error {
		survivors := make([][]byte, 0, len(obj.Segments[i]))
		for _, frag := range obj.Segments[i] {
			if frag != nil {
				survivors = append(survivors, frag)
			}
		}

		rebuilt, err := d.Reconstruct(ctx, survivors, indexes)
		if err != nil {
			return fmt.Errorf("segment %d: %w", i, err)
		}

		out[i] = rebuilt

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// run executes fn for segments [0, n) on the worker pool. Every worker owns
// one driver for its lifetime and closes it on exit.
func (s *Segmenter) run(ctx context.Context, n int, op string, fn func(d driver.Driver, i int) error) error {
	if n == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan int)

	for range min(s.workers, n) {
		g.Go(func() error {
			metrics.IncrementSegmentWorkers()
			defer metrics.DecrementSegmentWorkers()

			d, err := s.factory()
			if err != nil {
				return fmt.Errorf("failed to create driver: %w", err)
			}
			defer func() { _ = d.Close() }()

			for i := range jobs {
				if err := gctx.Err(); err != nil {
					return err
				}

				err := fn(d, i)
				metrics.RecordSegment(op, err)
				if err != nil {
					return err
				}
			}

			return nil
		})
	}

	g.Go(func() error {
		defer close(jobs)

		for i := range n {
			select {
			case jobs <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}

		return nil
	})

	return g.Wait()
}
