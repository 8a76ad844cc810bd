//go:build !unix

package command

import (
	"os"

	"github.com/DrTrintignant/Songbird/pkg/audio"
)

func suspend(*os.Process) error { return audio.ErrUnsupported }

func resume(*os.Process) error { return audio.ErrUnsupported }
