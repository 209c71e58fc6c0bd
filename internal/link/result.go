package link

import "fmt"

// Result is an AppMessage result code, carried in NACK frames.
type Result uint8

const (
	ResultOK                        Result = 0
	ResultSendTimeout               Result = 2
	ResultSendRejected              Result = 4
	ResultNotConnected              Result = 8
	ResultAppNotRunning             Result = 16
	ResultInvalidArgs               Result = 32
	ResultBusy                      Result = 64
	ResultBufferOverflow            Result = 128
	ResultAlreadyReleased           Result = 129
	ResultCallbackAlreadyRegistered Result = 130
	ResultCallbackNotRegistered     Result = 131
	ResultOutOfMemory               Result = 132
	ResultClosed                    Result = 133
	ResultInternalError             Result = 134
)

var resultNames = map[Result]string{
	ResultOK:                        "OK",
	ResultSendTimeout:               "Send timeout",
	ResultSendRejected:              "Send rejected",
	ResultNotConnected:              "Not connected",
	ResultAppNotRunning:             "App not running",
	ResultInvalidArgs:               "Invalid args",
	ResultBusy:                      "Busy",
	ResultBufferOverflow:            "Buffer overflow",
	ResultAlreadyReleased:           "Already released",
	ResultCallbackAlreadyRegistered: "Callback registered",
	ResultCallbackNotRegistered:     "Callback not registered",
	ResultOutOfMemory:               "Out of memory",
	ResultClosed:                    "Closed",
	ResultInternalError:             "Internal error",
}

func (r Result) String() string {
	if name, ok := resultNames[r]; ok {
		return name
	}
	return "Unknown"
}

// Error makes a non-OK result usable as the failure cause of a delivery.
func (r Result) Error() string {
	return fmt.Sprintf("%s (%d)", r.String(), uint8(r))
}
