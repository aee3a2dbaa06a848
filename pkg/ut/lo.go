package ut

import "github.com/samber/lo"

func Map[T any, R any](collection []T, fn func(T) R) []R {
	return lo.Map(collection, func(t T, _ int) R { return fn(t) })
}

func GroupBy[T any, K comparable](collection []T, fn func(T) K) map[K][]T {
	return lo.GroupBy(collection, fn)
}

func Keys[K comparable, V any](m map[K]V) []K {
	return lo.Keys(m)
}
