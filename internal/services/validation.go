package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// validateRequest 校验请求结构体，返回可读的字段级错误
func validateRequest(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("field '%s' failed on '%s'", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return fmt.Errorf("invalid request: %s", strings.Join(msgs, "; "))
}
