package httpx

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// ErrorBody 统一错误响应
type ErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// WantsProtobuf 客户端是否要求protobuf响应
func WantsProtobuf(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), binding.MIMEPROTOBUF)
}

// WriteObject 按Accept头输出protobuf或json
func WriteObject(c *gin.Context, status int, obj interface{}) {
	if WantsProtobuf(c) {
		msg, err := ToProto(obj)
		if err != nil {
			c.JSON(http.StatusInternalServerError, ErrorBody{
				Code:    http.StatusInternalServerError,
				Message: "internal server error",
			})
			return
		}
		c.ProtoBuf(status, msg)
		return
	}
	c.JSON(status, obj)
}

// WriteError 输出错误响应
func WriteError(c *gin.Context, status int, message string) {
	c.Abort()
	WriteObject(c, status, ErrorBody{Code: status, Message: message})
}

// ToProto 把任意可JSON序列化的对象转为protobuf Value
func ToProto(obj interface{}) (proto.Message, error) {
	if msg, ok := obj.(proto.Message); ok {
		return msg, nil
	}

	raw, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return structpb.NewValue(generic)
}
