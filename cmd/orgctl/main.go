// orgctl 组织结构服务的运维命令：迁移、演示数据、账号与树校验。
package main

func main() {
	Execute()
}
