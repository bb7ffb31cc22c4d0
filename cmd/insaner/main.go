// insaner 提供目录的静态文件服务，附带跨域、指标与访问日志。
//
//	insaner -config insaner.yaml -root ./public
package main

import (
	"flag"
	"fmt"
	"os"
)

func main() {
	var (
		configPath string
		root       string
	)
	flag.StringVar(&configPath, "config", "", "配置文件路径（YAML），为空时仅使用默认值与环境变量")
	flag.StringVar(&root, "root", "", "静态文件根目录，覆盖配置中的 static.root")
	flag.Parse()

	s, err := setup(configPath, root)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	s.Spin()
}
