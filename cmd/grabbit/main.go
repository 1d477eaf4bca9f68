// grabbit 抓取网页并输出摘要（title / description / images）的 JSON。
//
// 用法：
//
//	grabbit [flags] URL...
//
// 单个 URL 输出摘要 JSON；多个 URL 输出 BatchReport JSON。
package main

import "os"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
