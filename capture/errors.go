package capture

import (
	"errors"

	"github.com/hazyhaar/sitecap/capture/internal/browser"
	"github.com/hazyhaar/sitecap/capture/internal/interact"
)

// ErrLaunch is returned by Start when no browser could be launched.
var ErrLaunch = browser.ErrLaunch

// ErrNavigation is returned by Capture when the target page cannot be loaded.
var ErrNavigation = interact.ErrNavigation

// ErrControlNotFound is returned by Capture when the control never shows up.
var ErrControlNotFound = interact.ErrControlNotFound

// ErrBusy is returned by Capture while another capture is running.
var ErrBusy = errors.New("capture: a capture is already running")

// ErrNotStarted is returned by Capture before Start succeeded or after Close.
var ErrNotStarted = errors.New("capture: service not started")
