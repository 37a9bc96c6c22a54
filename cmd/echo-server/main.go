// Demo backend exposing request/response and duplex echo endpoints over
// the remotecall wire protocol.
package main

import (
	"context"
	"net/http"

	"github.com/levenlabs/go-llog"
	"github.com/mediocregopher/lever"

	"remotecall/registry"
	"remotecall/server"
)

func main() {
	l := lever.New("echo-server", nil)
	l.Add(lever.Param{
		Name:        "--listen-addr",
		Description: "address:port to listen on, or just :port",
		Default:     ":8886",
	})
	l.Add(lever.Param{
		Name:        "--advertise-addr",
		Description: "base url registered in etcd, e.g. http://127.0.0.1:8886",
		Default:     "",
	})
	l.Add(lever.Param{
		Name:        "--etcd-addr",
		Description: "etcd endpoint to register this instance with, empty to skip",
		Default:     "",
	})
	l.Add(lever.Param{
		Name:        "--log-level",
		Description: "minimum log level",
		Default:     "info",
	})
	l.Parse()
	listenAddr, _ := l.ParamStr("--listen-addr")
	advertiseAddr, _ := l.ParamStr("--advertise-addr")
	etcdAddr, _ := l.ParamStr("--etcd-addr")
	logLevel, _ := l.ParamStr("--log-level")

	llog.SetLevelFromString(logLevel)

	s := server.NewServer()
	s.Handle("/api/greet", func() (string, error) {
		return "hello", nil
	})
	s.Handle("/api/echo", func(msg string) (string, error) {
		return msg, nil
	})
	s.Handle("/api/sum", func(a, b int) (int, error) {
		return a + b, nil
	})
	s.HandleDuplex("/api/stream", func(ctx context.Context, in <-chan string, out chan<- string) error {
		defer close(out)
		for payload := range in {
			select {
			case out <- payload:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	if etcdAddr != "" {
		reg, err := registry.NewEtcdRegistry([]string{etcdAddr})
		if err != nil {
			llog.Fatal("failed connecting to etcd", llog.KV{"addr": etcdAddr, "err": err})
		}
		inst := registry.ServiceInstance{Addr: advertiseAddr, Weight: 10}
		if err := reg.RegisterInstance("echo", inst, 10); err != nil {
			llog.Fatal("failed registering instance", llog.KV{"err": err})
		}
		defer reg.DeregisterInstance("echo", advertiseAddr)
	}

	llog.Info("listening", llog.KV{"addr": listenAddr})
	err := http.ListenAndServe(listenAddr, s)
	llog.Fatal("server stopped", llog.KV{"err": err})
}
