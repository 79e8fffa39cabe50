package main

import (
	"context"
	"os/signal"
	"syscall"

	"sailscrape/cmd/sailscrape/commands"
)

func main() {
	// ECS/Fargate 는 종료 시 SIGTERM 을 보낸다.
	// ctx 가 취소되면 driver 는 다음 unit 을 시작하지 않고,
	// 이미 보낸 exchange 는 timeout 안에서 끝까지 읽는다.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	commands.ExecuteContext(ctx)
}
