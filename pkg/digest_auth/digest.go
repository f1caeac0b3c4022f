// Package digest_auth вычисляет заголовки Authorization/Proxy-Authorization
// для SIP Digest аутентификации (RFC 2617).
//
// Разбор challenge намеренно снисходительный: поддерживаются значения в кавычках
// и без, а список qop сводится к первому элементу. Отсутствие realm или nonce не
// считается ошибкой, такой заголовок синтаксически корректен, но сервер его отклонит.
package digest_auth

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/icholy/digest"
)

const (
	// AlgorithmMD5 алгоритм по умолчанию
	AlgorithmMD5 = "MD5"

	// QOPAuth единственный поддерживаемый qop
	QOPAuth = "auth"

	// nonceCount nc первого запроса с данным nonce
	nonceCount = 1
)

// paramPattern пара key="value" или key=value; значение обрывается на кавычке или запятой
var paramPattern = regexp.MustCompile(`(\w+)="?([^",]+)"?`)

// Challenge параметры WWW-Authenticate/Proxy-Authenticate
type Challenge struct {
	Realm     string
	Nonce     string
	Opaque    string
	QOP       string // Первый элемент списка qop
	Algorithm string // В верхнем регистре, по умолчанию MD5
	Params    map[string]string
}

// ParseChallenge разбирает challenge. Не возвращает ошибок: неизвестные поля
// попадают в Params, отсутствующие остаются пустыми.
func ParseChallenge(value string) Challenge {
	// Схема (Digest) отделена первым пробелом
	if _, rest, found := strings.Cut(strings.TrimSpace(value), " "); found {
		value = rest
	}

	params := make(map[string]string)
	for _, m := range paramPattern.FindAllStringSubmatch(value, -1) {
		params[m[1]] = m[2]
	}

	algorithm := AlgorithmMD5
	if a, ok := params["algorithm"]; ok {
		algorithm = strings.ToUpper(a)
	}

	return Challenge{
		Realm:     params["realm"],
		Nonce:     params["nonce"],
		Opaque:    params["opaque"],
		QOP:       params["qop"],
		Algorithm: algorithm,
		Params:    params,
	}
}

// Compute возвращает готовое значение заголовка Authorization для challenge.
//
// При qop=auth используются nc=00000001 и случайный 8-символьный cnonce,
// иначе ответ вычисляется по схеме RFC 2069 без qop/nc/cnonce.
func Compute(method, uri, username, password, challenge string) string {
	return computeWithCnonce(method, uri, username, password, ParseChallenge(challenge), newCnonce())
}

func computeWithCnonce(method, uri, username, password string, chal Challenge, cnonce string) string {
	useQOP := chal.QOP == QOPAuth

	cred, err := digest.Digest(toLibraryChallenge(chal, useQOP), digest.Options{
		Method:   method,
		URI:      uri,
		Username: username,
		Password: password,
		Count:    nonceCount,
		Cnonce:   cnonce,
	})

	var response, algorithm string
	if err == nil {
		response, algorithm = cred.Response, chal.Algorithm
	} else {
		// Неподдерживаемый библиотекой алгоритм: считаем MD5
		response, algorithm = md5Response(method, uri, username, password, chal, useQOP, cnonce), AlgorithmMD5
	}

	var b strings.Builder
	fmt.Fprintf(&b, `Digest username="%s", realm="%s", nonce="%s", uri="%s", response="%s", algorithm=%s`,
		username, chal.Realm, chal.Nonce, uri, response, algorithm)
	if useQOP {
		fmt.Fprintf(&b, `, nc=%08x, cnonce="%s", qop=%s`, nonceCount, cnonce, QOPAuth)
	}
	if chal.Opaque != "" {
		fmt.Fprintf(&b, `, opaque="%s"`, chal.Opaque)
	}
	return b.String()
}

func toLibraryChallenge(chal Challenge, useQOP bool) *digest.Challenge {
	c := &digest.Challenge{
		Realm:     chal.Realm,
		Nonce:     chal.Nonce,
		Opaque:    chal.Opaque,
		Algorithm: chal.Algorithm,
	}
	if useQOP {
		c.QOP = []string{QOPAuth}
	}
	return c
}

func md5Response(method, uri, username, password string, chal Challenge, useQOP bool, cnonce string) string {
	ha1 := md5Hex(username + ":" + chal.Realm + ":" + password)
	ha2 := md5Hex(method + ":" + uri)
	if useQOP {
		return md5Hex(fmt.Sprintf("%s:%s:%08x:%s:%s:%s", ha1, chal.Nonce, nonceCount, cnonce, QOPAuth, ha2))
	}
	return md5Hex(ha1 + ":" + chal.Nonce + ":" + ha2)
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func newCnonce() string {
	id := uuid.New()
	return hex.EncodeToString(id[:4])
}
