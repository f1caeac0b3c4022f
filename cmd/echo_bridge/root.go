package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:   "echo_bridge",
		Short: "Диагностика RTP моста SIP <-> комната",
		Long: `echo_bridge поднимает G.711 RTP мост и возвращает телефону его же звук.

Параметры читаются из файла (--config), переменных окружения с префиксом SIP_BRIDGE_
и флагов. Пример:

  SIP_BRIDGE_PUBLIC_IP=203.0.113.10 echo_bridge run --remote-ip 198.51.100.7 --remote-port 40000`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "путь к файлу конфигурации (yaml, json, toml)")

	root.AddCommand(newRunCommand(&configFile))
	root.AddCommand(newDigestCommand())
	return root
}
