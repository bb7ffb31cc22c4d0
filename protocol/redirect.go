package protocol

import (
	errs "github.com/favbox/insaner/common/errors"
	"github.com/favbox/insaner/protocol/consts"
)

// RedirectOptions 是重定向响应的选项，Status 缺省为 302。
type RedirectOptions struct {
	ResponseOptions
}

// NewRedirectResponse 创建重定向响应。状态码只能是 301、302、303、307 或 308。
func NewRedirectResponse(location string, opts *RedirectOptions) (*Response, error) {
	ro := ResponseOptions{}
	if opts != nil {
		ro = opts.ResponseOptions
	}
	if ro.Status == 0 {
		ro.Status = consts.StatusFound
	}
	switch ro.Status {
	case consts.StatusMovedPermanently, consts.StatusFound, consts.StatusSeeOther,
		consts.StatusTemporaryRedirect, consts.StatusPermanentRedirect:
	default:
		return nil, errs.New(errs.ErrInvalidRedirect, errs.ErrorTypePublic, ro.Status)
	}

	resp, err := newResponse(&ro, consts.StatusFound, nil)
	if err != nil {
		return nil, err
	}
	resp.SetHeader(consts.HeaderLocation, location)
	return resp, nil
}
