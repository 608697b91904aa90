package stream

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/fulldump/biff"
)

func TestStream_BuffersInOrder(t *testing.T) {
	s := New(func(s *Stream[int]) error {
		for i := 1; i <= 3; i++ {
			s.Yield(i)
		}
		s.Finish(nil)
		return nil
	})

	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		v, err := s.Next(ctx)
		AssertNil(err)
		AssertEqual(v, i)
	}
	_, err := s.Next(ctx)
	AssertEqual(err, io.EOF)
}

func TestStream_FailureAfterBufferedValues(t *testing.T) {
	boom := errors.New("boom")
	s := New[string](nil)
	s.Yield("a")
	s.Finish(boom)
	AssertFalse(s.Yield("late"))

	got := []string{}
	var failure error
	for v, err := range s.All(context.Background()) {
		if err != nil {
			failure = err
			break
		}
		got = append(got, v)
	}

	AssertEqual(got, []string{"a"})
	AssertEqual(failure, boom)
}

func TestStream_StartError(t *testing.T) {
	boom := errors.New("boom")
	s := New(func(s *Stream[int]) error {
		return boom
	})
	_, err := s.Next(context.Background())
	AssertEqual(err, boom)
}

func TestStream_CloseTearsDownOnce(t *testing.T) {
	teardowns := int32(0)
	s := New(func(s *Stream[int]) error {
		s.OnTermination(func() {
			atomic.AddInt32(&teardowns, 1)
		})
		return nil
	})

	s.Close()
	s.Close()
	s.Finish(nil)

	AssertEqual(atomic.LoadInt32(&teardowns), int32(1))
	_, err := s.Next(context.Background())
	AssertEqual(err, io.EOF)

	late := false
	s.OnTermination(func() { late = true })
	AssertTrue(late)
}

func TestStream_NextWaitsAndHonoursContext(t *testing.T) {
	s := New[int](nil)

	go func() {
		time.Sleep(10 * time.Millisecond)
		s.Yield(7)
	}()
	v, err := s.Next(context.Background())
	AssertNil(err)
	AssertEqual(v, 7)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = s.Next(ctx)
	AssertEqual(err, context.DeadlineExceeded)
}

func TestStream_BreakCloses(t *testing.T) {
	closed := false
	s := New(func(s *Stream[int]) error {
		s.OnTermination(func() { closed = true })
		s.Yield(1)
		s.Yield(2)
		return nil
	})

	for range s.All(context.Background()) {
		break
	}
	AssertTrue(closed)
}

func TestMap(t *testing.T) {
	ctx := context.Background()
	source := New(func(s *Stream[int]) error {
		s.Yield(1)
		s.Yield(2)
		s.Finish(nil)
		return nil
	})

	letters := Map(source, func(v int) string {
		return string(rune('a' + v))
	})

	v, err := letters.Next(ctx)
	AssertNil(err)
	AssertEqual(v, "b")
	v, err = letters.Next(ctx)
	AssertNil(err)
	AssertEqual(v, "c")
	_, err = letters.Next(ctx)
	AssertEqual(err, io.EOF)
}

func TestMap_CloseClosesSource(t *testing.T) {
	closed := make(chan struct{})
	source := New(func(s *Stream[int]) error {
		s.OnTermination(func() { close(closed) })
		return nil
	})

	mapped := Map(source, func(v int) int { return v })
	mapped.Close()

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("source was not closed")
	}
}
