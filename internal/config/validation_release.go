//go:build release

package config

const defaultValidation = false
