package api

import (
	"errors"
	"net/http"

	"github.com/cuemby/cronfleet/pkg/amount"
	"github.com/cuemby/cronfleet/pkg/host"
	"github.com/cuemby/cronfleet/pkg/types"
)

// callerHeader carries the authenticated caller principal, the HTTP
// stand-in for a contract runtime's predecessor(). cronfleet has no
// identity provider of its own; whatever sits in front of this service
// (a reverse proxy, a service mesh sidecar) is responsible for setting
// it after authenticating the caller.
const callerHeader = "X-Cronfleet-Caller"

var errMissingCaller = errors.New("api: missing " + callerHeader + " header")

// requestContext builds a host.RequestContext from the caller header and
// an optional attached-deposit body field, the HTTP equivalent of a
// contract call's predecessor() and attached_deposit().
func requestContext(r *http.Request, attachedDeposit string) (host.RequestContext, error) {
	caller := r.Header.Get(callerHeader)
	if caller == "" {
		return host.RequestContext{}, errMissingCaller
	}
	deposit, err := amount.FromDecimal(attachedDeposit)
	if err != nil {
		return host.RequestContext{}, err
	}
	return host.RequestContext{
		Caller:          types.Principal(caller),
		AttachedDeposit: deposit,
	}, nil
}
