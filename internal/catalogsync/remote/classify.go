package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/datasud/idgo/internal/common/httpclient"
)

// Kind is the classified outcome of a failed remote call.
type Kind string

const (
	KindNone        Kind = ""
	KindNotFound    Kind = "not_found"
	KindConflict    Kind = "conflict"
	KindTimeout     Kind = "timeout"
	KindUnavailable Kind = "unavailable"
)

// Classify turns a transport or HTTP error returned while calling service into
// one of the remote sentinel errors. Errors already classified are returned as is.
// Classify never retries and never swallows: a nil error stays nil and everything
// else comes back as an error.
func Classify(service string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrRemote) {
		return err
	}

	var httpErr *httpclient.HTTPError
	if errors.As(err, &httpErr) {
		msg := fmt.Sprintf("%s: %s", service, httpErr.Message)
		switch httpErr.StatusCode {
		case http.StatusNotFound:
			return ErrRemoteNotFound.MsgErr(msg, err)
		case http.StatusConflict:
			return ErrRemoteConflict.MsgErr(msg, err)
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return ErrRemoteTimeout.MsgErr(msg, err)
		default:
			return ErrRemoteUnavailable.MsgErr(fmt.Sprintf("%s: http %d: %s", service, httpErr.StatusCode, httpErr.Message), err)
		}
	}

	if isTimeout(err) {
		return ErrRemoteTimeout.MsgErr(fmt.Sprintf("%s: %v", service, err), err)
	}
	return ErrRemoteUnavailable.MsgErr(fmt.Sprintf("%s: %v", service, err), err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// KindOf reports the classified kind of err.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrRemoteNotFound):
		return KindNotFound
	case errors.Is(err, ErrRemoteConflict):
		return KindConflict
	case errors.Is(err, ErrRemoteTimeout):
		return KindTimeout
	default:
		return KindUnavailable
	}
}

func IsNotFound(err error) bool { return errors.Is(err, ErrRemoteNotFound) }
func IsConflict(err error) bool { return errors.Is(err, ErrRemoteConflict) }
func IsTimeout(err error) bool  { return errors.Is(err, ErrRemoteTimeout) }

// IsAlreadyExists reports a create refused because the object exists. The
// layer registry answers some of these with a server error rather than a 409.
func IsAlreadyExists(err error) bool {
	if err == nil {
		return false
	}
	return IsConflict(err) || strings.Contains(strings.ToLower(err.Error()), "already exists")
}

// IgnoreNotFound returns nil when err reports a missing remote object.
func IgnoreNotFound(err error) error {
	if IsNotFound(err) {
		return nil
	}
	return err
}
