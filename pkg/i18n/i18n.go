package i18n

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

var supported = []language.Tag{language.English, language.Korean}

var matcher = language.NewMatcher(supported)

var translations = map[string]string{
	"invalid request":                              "잘못된 요청입니다.",
	"invalid room id":                              "채팅방 ID가 올바르지 않습니다.",
	"invalid file id":                              "파일 ID가 올바르지 않습니다.",
	"invalid partner id":                           "상대방 ID가 올바르지 않습니다.",
	"invalid multipart form":                       "multipart 요청 형식이 올바르지 않습니다.",
	"request body too large":                       "요청 본문이 너무 큽니다.",
	"failed to generate token":                     "토큰 생성에 실패했습니다.",
	"failed to get user":                           "사용자 조회에 실패했습니다.",
	"missing authorization token":                  "인증 토큰이 없습니다.",
	"invalid token":                                "유효하지 않은 토큰입니다.",
	"failed to validate user":                      "사용자 확인에 실패했습니다.",
	"user not found":                               "사용자를 찾을 수 없습니다.",
	"unauthorized":                                 "인증이 필요합니다.",
	"permission denied":                            "권한이 없습니다.",
	"room not found":                               "채팅방을 찾을 수 없습니다.",
	"partner not found":                            "상대방을 찾을 수 없습니다.",
	"cannot open a room with yourself":             "자기 자신과는 채팅방을 만들 수 없습니다.",
	"message content or file is required":          "메시지 내용이나 파일을 입력해주세요.",
	"file %s is too large (max %s)":                "파일 %s의 크기가 너무 큽니다. (최대 %s)",
	"file %s size does not match its content":      "파일 %s의 크기가 실제 내용과 일치하지 않습니다.",
	"unsupported file type: %s (%s)":               "지원하지 않는 파일 형식입니다: %s (%s)",
	"file %s has no declared type":                 "파일 %s의 형식이 지정되지 않았습니다.",
	"file not found":                               "파일을 찾을 수 없습니다.",
	"file missing on server":                       "파일이 서버에 존재하지 않습니다.",
	"server error: %s":                             "서버 오류: %s",
	"rate limiter error":                           "요청 제한 처리 중 오류가 발생했습니다.",
	"rate limit exceeded":                          "요청 횟수가 너무 많습니다.",
	"internal server error":                        "내부 서버 오류입니다.",
	"not found":                                    "찾을 수 없습니다.",
	"username must be between 3 and 32 characters": "사용자 이름은 3자 이상 32자 이하여야 합니다.",
	"username can only contain letters, numbers, and underscores": "사용자 이름에는 영문자, 숫자, 밑줄만 사용할 수 있습니다.",
	"password must be at least 6 characters":                      "비밀번호는 6자 이상이어야 합니다.",
	"display name must be at most 64 characters":                  "표시 이름은 64자 이하여야 합니다.",
	"username already exists":                                     "이미 사용 중인 사용자 이름입니다.",
	"invalid username or password":                                "사용자 이름 또는 비밀번호가 올바르지 않습니다.",
}

var prefixTranslations = map[string]string{
	"failed to hash password:":   "비밀번호 처리에 실패했습니다.",
	"failed to register user:":   "회원가입에 실패했습니다.",
	"failed to get user id:":     "사용자 ID 조회에 실패했습니다.",
	"failed to query user:":      "사용자 정보 조회에 실패했습니다.",
	"failed to generate token:":  "토큰 생성에 실패했습니다.",
	"failed to sign token:":      "토큰 서명에 실패했습니다.",
	"failed to parse token:":     "유효하지 않은 토큰입니다.",
	"unexpected signing method:": "토큰 서명 방식이 올바르지 않습니다.",
}

// FromAcceptLanguage picks the best supported language for an
// Accept-Language header value. English is the fallback.
func FromAcceptLanguage(header string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return language.English
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return language.English
	}
	return supported[idx]
}

// Translate returns message in lang. Unknown messages and English pass
// through unchanged.
func Translate(lang language.Tag, message string) string {
	if lang != language.Korean {
		return message
	}
	if translated, ok := translations[message]; ok {
		return translated
	}
	for prefix, translated := range prefixTranslations {
		if strings.HasPrefix(message, prefix) {
			return translated
		}
	}
	return message
}

// Format translates a format template, then applies args.
func Format(lang language.Tag, template string, args ...any) string {
	if len(args) == 0 {
		return Translate(lang, template)
	}
	return fmt.Sprintf(Translate(lang, template), args...)
}
