package render

import "github.com/vkngwrapper/meshrender/internal/logging"

// scope collects the destroyers of objects whose lifetime is tied to the
// swapchain. Objects are released in the reverse order they were added, so
// anything created from another object goes away before it.
type scope struct {
	names      []string
	destroyers []func()
}

func (s *scope) add(name string, destroy func()) {
	s.names = append(s.names, name)
	s.destroyers = append(s.destroyers, destroy)
}

func (s *scope) len() int {
	return len(s.destroyers)
}

// release runs every destroyer, newest first, and reports how many ran.
// The scope is empty and reusable afterwards.
func (s *scope) release() int {
	count := len(s.destroyers)
	for i := count - 1; i >= 0; i-- {
		logging.Logger().Debug("destroy", "object", s.names[i])
		s.destroyers[i]()
	}

	s.names = s.names[:0]
	s.destroyers = s.destroyers[:0]
	return count
}
