// Command echoprobe is a manual smoke test for the dispatcher: it dials a
// gRPC echo server over HTTP/2 and issues one call of each shape that a
// simple echo service can answer.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/url"
	"time"

	"github.com/fullstorydev/grpchan/grpchantesting"

	"github.com/lunadial/grpclink"
	"github.com/lunadial/grpclink/codec"
	"github.com/lunadial/grpclink/transport"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:26355", "address of the echo server")
	path := flag.String("path", "/test.Echo/Echo", "call path of the echo method")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ch := transport.Dial(*addr)
	defer func() {
		_ = ch.Close()
	}()

	cli := grpclink.NewWithOrigin(ch, &url.URL{Scheme: "http", Host: *addr}).
		AcceptCompressed(codec.GzipName)
	if err := cli.Ready(ctx); err != nil {
		log.Fatalf("transport not ready: %v", err)
	}
	log.Println("Transport ready.")

	echoPath := grpclink.MustPath(*path)

	var reply grpchantesting.Message
	resp, err := cli.Unary(ctx, echoPath, codec.Proto(), &grpchantesting.Message{Payload: []byte("probe")}, &reply)
	if err != nil {
		log.Fatalf("unary call failed: %v", err)
	}
	log.Printf("Unary reply: %q (header %v, trailer %v)", string(reply.GetPayload()), resp.Header(), resp.Trailer())

	stream, err := cli.ServerStreaming(ctx, echoPath, codec.Proto(), &grpchantesting.Message{Payload: []byte("probe")})
	if err != nil {
		log.Fatalf("server-streaming call failed: %v", err)
	}
	n := 0
	for {
		var m grpchantesting.Message
		err := stream.RecvMsg(&m)
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatalf("server-streaming recv failed: %v", err)
		}
		n++
		fmt.Printf("  message %d: %q\n", n, string(m.GetPayload()))
	}
	log.Printf("Server-streaming call finished with %d messages.", n)
}
