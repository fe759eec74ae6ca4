package behaviors

import (
	"errors"
	"reflect"
	"strings"

	"github.com/km-arc/go-bootstrap/framework/container"
	"github.com/km-arc/go-bootstrap/framework/errs"
	"github.com/km-arc/go-bootstrap/framework/logging"
)

// typeArgs renders the pair of a behavior key as "<Req,Res>".
func typeArgs(pair container.ServiceKey) string {
	args := pair.Args()
	if len(args) == 0 {
		return ""
	}
	names := make([]string, len(args))
	for i, a := range args {
		names[i] = logging.FriendlyName(a)
	}
	return "<" + strings.Join(names, ",") + ">"
}

// requestName is the friendly name of the request's dynamic type.
func requestName(request any) string {
	return logging.FriendlyName(reflect.TypeOf(request))
}

// pairRequestName is the friendly name of the pair's request type, falling
// back to "unknown" for keys without arguments.
func pairRequestName(pair container.ServiceKey) string {
	if t := pair.Arg(0); t != nil {
		return logging.FriendlyName(t)
	}
	return "unknown"
}

func isNotRegistered(err error, key container.ServiceKey) bool {
	return errors.Is(err, &errs.ConfigError{Code: errs.CodeNotRegistered, Key: key.String()})
}
