// Package validator 注册业务自定义校验标签，并将校验错误翻译为中文提示
package validator

import (
	"errors"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zhtrans "github.com/go-playground/validator/v10/translations/zh"
	"github.com/shopspring/decimal"

	"reportcard/internal/model"
)

// 自定义标签
const (
	personNameTag = "personname"
	termTag       = "term"
	birthDateTag  = "birthdate"
)

var customTexts = map[string]string{
	personNameTag: "{0}不能为空且不能包含数字",
	termTag:       "{0}必须为 1、2 或 3",
	birthDateTag:  "{0}必须为 YYYY-MM-DD 格式且年份在 1930 至 2025 之间",
}

var (
	setupOnce  sync.Once
	setupErr   error
	translator ut.Translator
)

// Setup 在 gin 默认校验引擎上注册自定义标签与中文翻译，可重复调用
func Setup() error {
	setupOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			setupErr = errors.New("gin 校验引擎不是 validator/v10")
			return
		}
		translator, setupErr = Register(v)
	})
	return setupErr
}

// Register 向 v 注册自定义标签、decimal 类型转换与中文翻译
func Register(v *validator.Validate) (ut.Translator, error) {
	// 错误字段名使用 json / form 标签
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, key := range []string{"json", "form"} {
			name := strings.SplitN(fld.Tag.Get(key), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})

	// decimal 按数值参与 min / max 比较
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	for tag, fn := range map[string]validator.Func{
		personNameTag: personName,
		termTag:       term,
		birthDateTag:  birthDate,
	} {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return nil, err
		}
	}

	locale := zh.New()
	trans, _ := ut.New(locale, locale).GetTranslator("zh")
	if err := zhtrans.RegisterDefaultTranslations(v, trans); err != nil {
		return nil, err
	}
	for tag, text := range customTexts {
		if err := registerTranslation(v, trans, tag, text); err != nil {
			return nil, err
		}
	}
	return trans, nil
}

func registerTranslation(v *validator.Validate, trans ut.Translator, tag, text string) error {
	return v.RegisterTranslation(
		tag, trans,
		func(t ut.Translator) error { return t.Add(tag, text, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// Translate 将校验错误转为 字段 → 提示 的映射；非校验错误返回 nil
func Translate(err error) map[string]string {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return nil
	}
	out := make(map[string]string, len(ves))
	for _, fe := range ves {
		if translator != nil {
			out[fe.Field()] = fe.Translate(translator)
		} else {
			out[fe.Field()] = fe.Error()
		}
	}
	return out
}

// ────── 自定义校验 ──────

// personName 非空白且不含数字
func personName(fl validator.FieldLevel) bool {
	s := strings.TrimSpace(fl.Field().String())
	if s == "" {
		return false
	}
	for _, r := range s {
		if unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func term(fl validator.FieldLevel) bool {
	switch fl.Field().Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return model.ValidTerm(int(fl.Field().Int()))
	}
	return false
}

func birthDate(fl validator.FieldLevel) bool {
	_, err := model.ParseDateOfBirth(fl.Field().String())
	return err == nil
}
