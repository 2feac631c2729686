package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// getValidator возвращает общий экземпляр validator (кэширует описание структур).
func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// validateStruct проверяет теги validate и возвращает ошибку
// с сообщениями по каждому полю.
func validateStruct(s any) error {
	err := getValidator().Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, translateError(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// translateError формирует сообщение для одного поля.
func translateError(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("поле %s обязательно", field)
	case "max":
		return fmt.Sprintf("поле %s: не более %s символов", field, fe.Param())
	case "min":
		return fmt.Sprintf("поле %s: не менее %s", field, fe.Param())
	case "gt", "gte":
		return fmt.Sprintf("поле %s должно быть больше 0", field)
	case "len":
		return fmt.Sprintf("поле %s: длина должна быть %s", field, fe.Param())
	case "alpha":
		return fmt.Sprintf("поле %s: только латинские буквы", field)
	case "oneof":
		return fmt.Sprintf("поле %s: допустимые значения %s", field, fe.Param())
	case "datetime":
		return fmt.Sprintf("поле %s: ожидается дата в формате %s", field, fe.Param())
	case "url":
		return fmt.Sprintf("поле %s: ожидается URL", field)
	}
	return fmt.Sprintf("поле %s: ошибка проверки %s", field, fe.Tag())
}
