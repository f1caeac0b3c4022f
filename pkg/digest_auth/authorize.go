package digest_auth

import (
	"fmt"

	"github.com/emiago/sipgo/sip"
)

// Authorize добавляет к запросу ответ на challenge из 401/407.
// Для 401 используется WWW-Authenticate -> Authorization,
// для 407 Proxy-Authenticate -> Proxy-Authorization.
// Старый заголовок авторизации заменяется; CSeq увеличивает вызывающая сторона.
func Authorize(req *sip.Request, res *sip.Response, username, password string) error {
	if req == nil || res == nil {
		return fmt.Errorf("запрос и ответ обязательны")
	}

	var challengeName, authName string
	switch res.StatusCode {
	case sip.StatusUnauthorized:
		challengeName, authName = "WWW-Authenticate", "Authorization"
	case sip.StatusProxyAuthRequired:
		challengeName, authName = "Proxy-Authenticate", "Proxy-Authorization"
	default:
		return fmt.Errorf("ответ %d не требует аутентификации", res.StatusCode)
	}

	h := res.GetHeader(challengeName)
	if h == nil {
		return fmt.Errorf("в ответе %d нет заголовка %s", res.StatusCode, challengeName)
	}

	value := Compute(req.Method.String(), req.Recipient.String(), username, password, h.Value())

	req.RemoveHeader(authName)
	req.AppendHeader(sip.NewHeader(authName, value))
	return nil
}
