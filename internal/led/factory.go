package led

import (
	"os"
	"strings"

	"github.com/smazurov/stillcam/internal/logging"
)

const deviceTreeModelPath = "/proc/device-tree/model"

// board maps a device-tree model substring to the LED used as the shutter
// indicator and the sysfs names of every LED on the board.
type board struct {
	match   string
	shutter string
	leds    map[string]string
}

var boards = []board{
	{match: "NanoPC-T6", shutter: "user", leds: map[string]string{"user": "usr_led", "system": "sys_led"}},
	{match: "Orange Pi", shutter: "blue", leds: map[string]string{"blue": "blue_led", "green": "green_led"}},
	{match: "Raspberry Pi", shutter: "act", leds: map[string]string{"act": "ACT"}},
}

// New detects the board and returns a controller plus the LED type to use
// as the shutter indicator. Unknown boards get a no-op controller.
func New(logger logging.Logger) (Controller, string) {
	if logger == nil {
		logger = logging.GetLogger("led")
	}
	return forModel(detectBoard(), logger)
}

func forModel(model string, logger logging.Logger) (Controller, string) {
	for _, b := range boards {
		if strings.Contains(model, b.match) {
			logger.Info("Using sysfs LED controller", "board_model", model, "shutter_led", b.shutter)
			return newSysfs(b.leds), b.shutter
		}
	}
	logger.Info("No LED support detected, using no-op controller", "board_model", model)
	return newNoop(logger), ""
}

func detectBoard() string {
	data, err := os.ReadFile(deviceTreeModelPath)
	if err != nil {
		return "unknown"
	}
	return strings.TrimRight(string(data), "\x00")
}
