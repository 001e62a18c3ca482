package response

import (
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Response is the envelope every placement API reply uses.
type Response struct {
	Data       any         `json:"data"`
	Error      *ErrorBody  `json:"error,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Metadata   Metadata    `json:"metadata"`
}

// ErrorBody is the error half of the envelope. RetryAfter mirrors the
// Retry-After header, in seconds, for clients that cannot read headers.
type ErrorBody struct {
	Code       ErrCode           `json:"code"`
	Message    string            `json:"message"`
	Fields     map[string]string `json:"fields,omitempty"`
	RetryAfter int               `json:"retry_after,omitempty"`
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

// NewPagination fills in TotalPages from the item count.
func NewPagination(page, perPage, totalItems int) *Pagination {
	p := &Pagination{Page: page, PerPage: perPage, TotalItems: totalItems}
	if perPage > 0 {
		p.TotalPages = (totalItems + perPage - 1) / perPage
	}
	return p
}

// Metadata includes request tracing and timing.
type Metadata struct {
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

// ─── Success ───────────────────────────────────────────────────────────

// Success sends data with the given status code.
func Success(c *gin.Context, statusCode int, data any) {
	c.JSON(statusCode, Response{Data: data, Metadata: buildMetadata(c)})
}

// SuccessWithPagination sends one page of a listing.
func SuccessWithPagination(c *gin.Context, statusCode int, data any, pagination *Pagination) {
	c.JSON(statusCode, Response{Data: data, Pagination: pagination, Metadata: buildMetadata(c)})
}

// ─── Failure ───────────────────────────────────────────────────────────

// Fail sends an error response carrying only the code and its message.
func Fail(c *gin.Context, statusCode int, code ErrCode) {
	writeError(c, statusCode, &ErrorBody{Code: code}, false)
}

// FailWithFields sends an error response with per-field details.
func FailWithFields(c *gin.Context, statusCode int, code ErrCode, fields map[string]string) {
	writeError(c, statusCode, &ErrorBody{Code: code, Fields: fields}, false)
}

// FailRetryable sends an error the client may retry unchanged after the
// given delay.
func FailRetryable(c *gin.Context, statusCode int, code ErrCode, after time.Duration) {
	writeError(c, statusCode, retryBody(c, code, after), false)
}

// AbortFail aborts the middleware chain and sends an error response.
func AbortFail(c *gin.Context, statusCode int, code ErrCode) {
	writeError(c, statusCode, &ErrorBody{Code: code}, true)
}

// AbortFailRetryable is AbortFail with a retry hint.
func AbortFailRetryable(c *gin.Context, statusCode int, code ErrCode, after time.Duration) {
	writeError(c, statusCode, retryBody(c, code, after), true)
}

// RetryAfterSeconds rounds a delay up to whole seconds, never below one.
func RetryAfterSeconds(after time.Duration) int {
	return max(int(math.Ceil(after.Seconds())), 1)
}

func retryBody(c *gin.Context, code ErrCode, after time.Duration) *ErrorBody {
	secs := RetryAfterSeconds(after)
	c.Header("Retry-After", strconv.Itoa(secs))
	return &ErrorBody{Code: code, RetryAfter: secs}
}

func writeError(c *gin.Context, statusCode int, body *ErrorBody, abort bool) {
	body.Message = GetMessage(body.Code)
	resp := Response{Error: body, Metadata: buildMetadata(c)}
	if abort {
		c.AbortWithStatusJSON(statusCode, resp)
		return
	}
	c.JSON(statusCode, resp)
}

func buildMetadata(c *gin.Context) Metadata {
	id, _ := c.Get(ContextKeyRequestID)
	reqID, ok := id.(string)
	if !ok || reqID == "" {
		// RequestIDMiddleware not installed on this route.
		reqID = uuid.NewString()
	}
	return Metadata{
		RequestID: reqID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
