//go:build !windows

package products

func FindProducts(string) ([]string, error) { return nil, ErrUnsupported }
