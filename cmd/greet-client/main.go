// Demo client: binds a few methods, calls the echo-server, and runs a
// short duplex exchange against it.
package main

import (
	"context"
	"fmt"

	"github.com/levenlabs/go-llog"
	"github.com/mediocregopher/lever"

	"remotecall/client"
	"remotecall/middleware"
	"remotecall/registry"
	"remotecall/transport"
)

const (
	methodGreet  registry.Method = "greet"
	methodSum    registry.Method = "sum"
	methodStream registry.Method = "stream"
)

func main() {
	l := lever.New("greet-client", nil)
	l.Add(lever.Param{
		Name:        "--server-addr",
		Description: "base url of the echo-server",
		Default:     "http://127.0.0.1:8886",
	})
	l.Add(lever.Param{
		Name:        "--log-level",
		Description: "minimum log level",
		Default:     "info",
	})
	l.Parse()
	serverAddr, _ := l.ParamStr("--server-addr")
	logLevel, _ := l.ParamStr("--log-level")

	llog.SetLevelFromString(logLevel)

	reg := registry.NewLocalRegistry()
	reg.Bind(methodGreet, registry.Binding{Path: "/api/greet", Verb: registry.VerbPost})
	reg.Bind(methodSum, registry.Binding{Path: "/api/sum", Verb: registry.VerbPost})
	reg.Bind(methodStream, registry.Binding{Path: "/api/stream", Verb: registry.VerbWS})

	agent := client.New(reg, transport.NewHTTPTransport(nil), serverAddr)
	agent.Use(middleware.Logging())

	ctx := context.Background()

	greeting, err := client.Call[string](ctx, agent, methodGreet)
	if err != nil {
		llog.Fatal("greet call failed", llog.KV{"err": err})
	}
	fmt.Println("greet:", greeting)

	sum, err := client.Call[int](ctx, agent, methodSum, 19, 23)
	if err != nil {
		llog.Fatal("sum call failed", llog.KV{"err": err})
	}
	fmt.Println("sum:", sum)

	err = client.OpenDuplex(ctx, agent, methodStream, func(out chan<- string, in <-chan string) error {
		defer close(out)
		// One outstanding exchange at a time: send, await the echo.
		for _, msg := range []string{"one", "two", "three"} {
			out <- msg
			reply, ok := <-in
			if !ok {
				break
			}
			fmt.Println("stream:", reply)
		}
		return nil
	})
	if err != nil {
		llog.Fatal("duplex session failed", llog.KV{"err": err})
	}
}
