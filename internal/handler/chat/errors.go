package chat

import (
	"net/http"

	"github.com/pkg/errors"

	chatService "github.com/aisuru/companion/backend/internal/service/chat"
)

// clientErrors 按优先级列出可以原样返回给客户端的哨兵错误。
var clientErrors = []struct {
	err    error
	status int
}{
	{chatService.ErrUserRequired, http.StatusBadRequest},
	{chatService.ErrCompanionRequired, http.StatusBadRequest},
	{chatService.ErrEmptyMessage, http.StatusBadRequest},
	{chatService.ErrCompanionNotFound, http.StatusNotFound},
	{chatService.ErrReplyPending, http.StatusConflict},
	{chatService.ErrStaleSession, http.StatusConflict},
	{chatService.ErrSessionClosed, http.StatusGone},
	{chatService.ErrGenerationFailed, http.StatusBadGateway},
	{chatService.ErrEmptyReply, http.StatusBadGateway},
}

// ErrorStatus 将聊天服务错误映射为HTTP状态码和客户端消息。
// 消息只取哨兵错误本身，上游的错误细节只写日志。
func ErrorStatus(err error) (int, string) {
	for _, c := range clientErrors {
		if errors.Is(err, c.err) {
			return c.status, c.err.Error()
		}
	}
	return http.StatusInternalServerError, "internal error"
}
