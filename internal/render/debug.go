package render

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/ext_debug_utils"
	"github.com/vkngwrapper/meshrender/internal/logging"
	"golang.org/x/exp/slog"
)

// debugMessenger forwards validation messages to the logger. A nil
// *debugMessenger is valid and does nothing.
type debugMessenger struct {
	handle ext_debug_utils.DebugUtilsMessenger
}

func debugMessengerOptions() ext_debug_utils.DebugUtilsMessengerCreateInfo {
	return ext_debug_utils.DebugUtilsMessengerCreateInfo{
		MessageSeverity: ext_debug_utils.SeverityError | ext_debug_utils.SeverityWarning,
		MessageType:     ext_debug_utils.TypeGeneral | ext_debug_utils.TypeValidation | ext_debug_utils.TypePerformance,
		UserCallback:    logDebugMessage,
	}
}

func createDebugMessenger(instance core1_0.Instance) (*debugMessenger, error) {
	debugLoader := ext_debug_utils.CreateExtensionFromInstance(instance)
	handle, _, err := debugLoader.CreateDebugUtilsMessenger(instance, nil, debugMessengerOptions())
	if err != nil {
		return nil, errors.Wrap(err, "create debug messenger")
	}
	return &debugMessenger{handle: handle}, nil
}

func (m *debugMessenger) destroy() {
	if m == nil || m.handle == nil {
		return
	}
	m.handle.Destroy(nil)
	m.handle = nil
}

func severityLevel(severity ext_debug_utils.DebugUtilsMessageSeverityFlags) slog.Level {
	switch {
	case severity&ext_debug_utils.SeverityError != 0:
		return slog.LevelError
	case severity&ext_debug_utils.SeverityWarning != 0:
		return slog.LevelWarn
	case severity&ext_debug_utils.SeverityInfo != 0:
		return slog.LevelInfo
	}
	return slog.LevelDebug
}

func logDebugMessage(msgType ext_debug_utils.DebugUtilsMessageTypeFlags, severity ext_debug_utils.DebugUtilsMessageSeverityFlags, data *ext_debug_utils.DebugUtilsMessengerCallbackData) bool {
	logging.Logger().Log(context.Background(), severityLevel(severity), data.Message,
		"source", "vulkan",
		"type", msgType.String())
	return false
}
