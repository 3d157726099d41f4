//go:build !unix

package engine

import "os"

func pauseProcess(_ *os.Process) error {
	return ErrPauseUnsupported
}

func resumeProcess(_ *os.Process) error {
	return ErrPauseUnsupported
}
