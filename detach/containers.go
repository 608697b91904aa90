package detach

type List[T any] []T

func (l List[T]) Detached() List[T] {
	return List[T](Slice([]T(l)))
}

type SetOf[T comparable] map[T]struct{}

func (s SetOf[T]) Detached() SetOf[T] {
	return SetOf[T](Set(map[T]struct{}(s)))
}

func (s SetOf[T]) Add(v T) {
	s[v] = struct{}{}
}

func (s SetOf[T]) Has(v T) bool {
	_, ok := s[v]
	return ok
}

type Dict[K comparable, V any] map[K]V

func (d Dict[K, V]) Detached() Dict[K, V] {
	return Dict[K, V](Map(map[K]V(d)))
}
