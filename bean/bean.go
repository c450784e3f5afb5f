package bean

import "context"

// Iterator provides pull-based sequential access to a stream of values.
type Iterator[T any] interface {
	// Next returns the next value. Returns (zero, false, nil) when exhausted.
	Next(ctx context.Context) (T, bool, error)
	// Close releases any resources held by the iterator.
	Close() error
}

// Bean is a node of the stream graph.
type Bean interface {
	Name() string
	// Inputs returns the beans this one reads from.
	Inputs() []Bean
}

// Stream is a bean that produces values of type T.
type Stream[T any] interface {
	Bean
	// Iterator starts a new lazy sequence. Nothing is read before Next.
	Iterator(ctx context.Context, sampleRate float64) Iterator[T]
}

// Factory creates the iterator of a stream.
type Factory[T any] func(ctx context.Context, sampleRate float64) Iterator[T]

type stream[T any] struct {
	name   string
	inputs []Bean
	create Factory[T]
}

// New returns a stream bean backed by create.
func New[T any](name string, create Factory[T], inputs ...Bean) Stream[T] {
	return &stream[T]{name: name, inputs: inputs, create: create}
}

func (s *stream[T]) Name() string   { return s.name }
func (s *stream[T]) Inputs() []Bean { return s.inputs }
func (s *stream[T]) String() string { return s.name }

func (s *stream[T]) Iterator(ctx context.Context, sampleRate float64) Iterator[T] {
	return s.create(ctx, sampleRate)
}

// IteratorFunc adapts a next function to an Iterator.
type IteratorFunc[T any] func(ctx context.Context) (T, bool, error)

func (f IteratorFunc[T]) Next(ctx context.Context) (T, bool, error) { return f(ctx) }
func (f IteratorFunc[T]) Close() error                             { return nil }

// Drain reads it to the end, closes it and returns every value read.
func Drain[T any](ctx context.Context, it Iterator[T]) ([]T, error) {
	defer it.Close()
	var out []T
	for {
		v, ok, err := it.Next(ctx)
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, v)
	}
}
