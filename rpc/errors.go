package rpc

import (
	"net/http"

	coreerrors "limitlesswork/core/errors"
)

type errorData struct {
	Code string `json:"code"`
	Kind string `json:"kind"`
}

// toRPCError maps ledger rejections onto JSON-RPC error objects. The stable
// error code travels in data so clients can switch on it.
func toRPCError(err error) *RPCError {
	var rpcErr *RPCError
	if coreerrors.As(err, &rpcErr) && rpcErr != nil {
		if rpcErr.HTTPStatus == 0 {
			rpcErr.HTTPStatus = http.StatusBadRequest
		}
		return rpcErr
	}
	var domainErr *coreerrors.Error
	if !coreerrors.As(err, &domainErr) || domainErr == nil {
		return &RPCError{HTTPStatus: http.StatusInternalServerError, Code: codeServerError, Message: "internal error"}
	}
	data := errorData{Code: domainErr.Code, Kind: domainErr.Kind.String()}
	out := &RPCError{Message: domainErr.Error(), Data: data}
	switch domainErr.Kind {
	case coreerrors.KindValidation, coreerrors.KindResolution:
		out.HTTPStatus, out.Code = http.StatusBadRequest, codeInvalidParams
	case coreerrors.KindAuthorization:
		out.HTTPStatus, out.Code = http.StatusForbidden, codeForbidden
	case coreerrors.KindState:
		out.HTTPStatus, out.Code = http.StatusConflict, codeConflict
	case coreerrors.KindNotFound:
		out.HTTPStatus, out.Code = http.StatusNotFound, codeNotFound
	case coreerrors.KindFunds:
		out.HTTPStatus, out.Code = http.StatusBadRequest, codeFunds
	default:
		out.HTTPStatus, out.Code = http.StatusInternalServerError, codeServerError
		out.Message = "internal error"
	}
	return out
}
