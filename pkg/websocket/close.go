package websocket

import (
	"errors"
	"strconv"

	"github.com/gorilla/websocket"
)

// StatusCode indicates the reason for the closure of an established
// WebSocket connection, as defined in
// https://datatracker.ietf.org/doc/html/rfc6455#section-7.4.
type StatusCode int

// Based on https://datatracker.ietf.org/doc/html/rfc6455#section-7.4.1 and
// https://www.iana.org/assignments/websocket/websocket.xhtml#close-code-number.
const (
	StatusNormalClosure      StatusCode = websocket.CloseNormalClosure
	StatusGoingAway          StatusCode = websocket.CloseGoingAway
	StatusProtocolError      StatusCode = websocket.CloseProtocolError
	StatusUnsupportedData    StatusCode = websocket.CloseUnsupportedData
	StatusNotReceived        StatusCode = websocket.CloseNoStatusReceived
	StatusClosedAbnormally   StatusCode = websocket.CloseAbnormalClosure
	StatusInvalidData        StatusCode = websocket.CloseInvalidFramePayloadData
	StatusPolicyViolation    StatusCode = websocket.ClosePolicyViolation
	StatusMessageTooBig      StatusCode = websocket.CloseMessageTooBig
	StatusMandatoryExtension StatusCode = websocket.CloseMandatoryExtension
	StatusInternalError      StatusCode = websocket.CloseInternalServerErr
	StatusServiceRestart     StatusCode = websocket.CloseServiceRestart
	StatusTryAgainLater      StatusCode = websocket.CloseTryAgainLater
	StatusBadGateway         StatusCode = 1014
	StatusTLSHandshake       StatusCode = websocket.CloseTLSHandshake
)

var statusNames = map[StatusCode]string{
	StatusNormalClosure:      "normal closure",
	StatusGoingAway:          "going away",
	StatusProtocolError:      "protocol error",
	StatusUnsupportedData:    "unsupported data",
	StatusNotReceived:        "status not received",
	StatusClosedAbnormally:   "closed abnormally",
	StatusInvalidData:        "invalid data",
	StatusPolicyViolation:    "policy violation",
	StatusMessageTooBig:      "message too big",
	StatusMandatoryExtension: "expected extension negotiation",
	StatusInternalError:      "internal error",
	StatusServiceRestart:     "service restart",
	StatusTryAgainLater:      "try again later",
	StatusBadGateway:         "bad gateway",
	StatusTLSHandshake:       "TLS handshake",
}

// String returns the status code's name, or its number if it's unrecognized.
func (s StatusCode) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return strconv.Itoa(int(s))
}

// maxCloseReason is the maximum length of a connection closing reason:
// control frame payloads are limited to 125 bytes, 2 of which are the status code.
const maxCloseReason = 123

// closeStatus extracts the status code and reason from a read error.
// Errors that aren't close frames from the server mean an abnormal closure.
func closeStatus(err error) (StatusCode, string) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return StatusCode(ce.Code), ce.Text
	}
	return StatusClosedAbnormally, err.Error()
}
