//go:build !unix

package sampler

import "time"

func processCPUTime() (time.Duration, error) {
	return 0, ErrUnsupported
}
