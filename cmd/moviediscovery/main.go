// Command moviediscovery は映画検索とお気に入り管理のAPIサーバーとワーカーを起動する。
//
// 使い方:
//
//	moviediscovery [serve|worker|migrate|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/moviediscovery/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "moviediscovery: %v\n", err)
		os.Exit(1)
	}
}
