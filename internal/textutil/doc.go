// Package textutil provides small string helpers for building file names.
package textutil
