package consts

// 协议版本
const (
	HTTP10 = "HTTP/1.0"
	HTTP11 = "HTTP/1.1"
)

// HTTP 方法，来自 RFC 7231 与 RFC 5789。
const (
	MethodGet     = "GET"
	MethodHead    = "HEAD"
	MethodPost    = "POST"
	MethodPut     = "PUT"
	MethodPatch   = "PATCH"
	MethodDelete  = "DELETE"
	MethodConnect = "CONNECT"
	MethodOptions = "OPTIONS"
	MethodTrace   = "TRACE"
)

// HTTP 标头名称，均为规范形式。
const (
	HeaderAuthorization   = "Authorization"
	HeaderWWWAuthenticate = "Www-Authenticate"

	HeaderCacheControl = "Cache-Control"
	HeaderVary         = "Vary"

	HeaderConnection       = "Connection"
	HeaderKeepAlive        = "Keep-Alive"
	HeaderUpgrade          = "Upgrade"
	HeaderTransferEncoding = "Transfer-Encoding"
	HeaderTE               = "Te"
	HeaderTrailer          = "Trailer"

	HeaderContentType        = "Content-Type"
	HeaderContentLength      = "Content-Length"
	HeaderContentEncoding    = "Content-Encoding"
	HeaderContentDisposition = "Content-Disposition"

	HeaderAcceptEncoding = "Accept-Encoding"
	HeaderAcceptRanges   = "Accept-Ranges"
	HeaderRange          = "Range"
	HeaderContentRange   = "Content-Range"

	HeaderCookie    = "Cookie"
	HeaderSetCookie = "Set-Cookie"

	HeaderHost     = "Host"
	HeaderLocation = "Location"
	HeaderAllow    = "Allow"
	HeaderServer   = "Server"
	HeaderDate     = "Date"
	HeaderExpect   = "Expect"
	HeaderOrigin   = "Origin"

	HeaderAccessControlAllowOrigin      = "Access-Control-Allow-Origin"
	HeaderAccessControlAllowCredentials = "Access-Control-Allow-Credentials"
	HeaderAccessControlAllowMethods     = "Access-Control-Allow-Methods"
	HeaderAccessControlAllowHeaders     = "Access-Control-Allow-Headers"
	HeaderAccessControlExposeHeaders    = "Access-Control-Expose-Headers"
	HeaderAccessControlMaxAge           = "Access-Control-Max-Age"
	HeaderAccessControlRequestHeaders   = "Access-Control-Request-Headers"
	HeaderAccessControlRequestMethod    = "Access-Control-Request-Method"
)

// 常用的标头取值
const (
	MIMETextPlain           = "text/plain; charset=utf-8"
	MIMETextHTML            = "text/html; charset=utf-8"
	MIMEApplicationJSON     = "application/json"
	MIMEApplicationProtobuf = "application/x-protobuf"
	MIMEOctetStream         = "application/octet-stream"
	MIMEEventStream         = "text/event-stream"
	MIMEMultipartByteRanges = "multipart/byteranges"

	ValueBytes       = "bytes"
	ValueChunked     = "chunked"
	ValueClose       = "close"
	ValueKeepAlive   = "keep-alive"
	ValueUpgrade     = "upgrade"
	ValueNoCache     = "no-cache"
	Value100Continue = "100-continue"
)
