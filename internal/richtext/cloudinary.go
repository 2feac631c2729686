package richtext

import (
	"regexp"
	"strconv"
	"strings"
)

const cloudinaryUploadPath = "/image/upload/"

// transformedRe — URL уже содержит сегмент трансформаций после /image/upload/.
var transformedRe = regexp.MustCompile(`/image/upload/[^/]*\b(?:w|h|c|q|f)_[^/]*/`)

// CloudinaryURL вставляет трансформацию q_auto,f_auto[,w_N][,h_N],c_<crop|limit>
// после /image/upload/. Прочие URL и уже трансформированные возвращаются без изменений.
func CloudinaryURL(url string, width, height int, crop string) string {
	parts := []string{"q_auto", "f_auto"}
	if width > 0 {
		parts = append(parts, "w_"+strconv.Itoa(width))
	}
	if height > 0 {
		parts = append(parts, "h_"+strconv.Itoa(height))
	}
	if crop != "" {
		parts = append(parts, "c_"+crop)
	} else {
		parts = append(parts, "c_limit")
	}
	return CloudinaryTransform(url, strings.Join(parts, ","))
}

// CloudinaryTransform вставляет произвольную строку трансформаций
// (например, миниатюру w_96,h_64,c_fill) в Cloudinary URL.
func CloudinaryTransform(url, transforms string) string {
	if !strings.Contains(url, cloudinaryUploadPath) || transformedRe.MatchString(url) {
		return url
	}
	return strings.Replace(url, cloudinaryUploadPath, cloudinaryUploadPath+transforms+"/", 1)
}
