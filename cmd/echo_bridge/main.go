// Команда echo_bridge диагностирует RTP мост без конференц-комнаты.
//
// Подкоманда run поднимает мост на порту из пула и возвращает телефону
// его же звук: удобно для проверки NAT, firewall и кодеков SIP транка.
// Подкоманда digest вычисляет заголовок Authorization для ответа на 401/407.
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
