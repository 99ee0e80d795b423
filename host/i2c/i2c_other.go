//go:build !linux

package i2c

import "errors"

// Open fails outside Linux, which is the only platform with i2c-dev
func Open(path string) (*Bus, error) {
	return nil, errors.New("i2c: i2c-dev is only available on linux")
}
