package main

import (
	"bytes"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/google/uuid"

	"github.com/fulldump/liverepo/bootstrap"
	"github.com/fulldump/liverepo/configuration"
	"github.com/fulldump/liverepo/service"
)

func Parallel(workers int, f func()) {
	wg := &sync.WaitGroup{}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f()
		}()
	}
	wg.Wait()
}

func TempDir() (string, func()) {
	dir, err := os.MkdirTemp("", "liverepo_bench_*")
	if err != nil {
		panic("Could not create temp directory: " + err.Error())
	}

	cleanup := func() {
		os.RemoveAll(dir)
	}

	return dir, cleanup
}

// CreateServer starts a server on a free port when c.Base is empty.
func CreateServer(c *Config) (stop func()) {
	if c.Base != "" {
		return func() {}
	}

	dir, cleanup := TempDir()
	cleanups = append(cleanups, cleanup)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		panic(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	conf := configuration.Default()
	conf.Dir = dir
	conf.HttpAddr = addr
	c.Base = "http://" + addr

	start, stop, err := bootstrap.Bootstrap(&conf)
	if err != nil {
		panic(err)
	}
	go start()

	return stop
}

func NewClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			MaxConnsPerHost:     1024,
			MaxIdleConnsPerHost: 1024,
			MaxIdleConns:        1024,
		},
		Timeout: 10 * time.Second,
	}
}

func AddUser(client *http.Client, base string, user *service.User) error {
	payload, err := json.Marshal(user)
	if err != nil {
		return err
	}

	resp, err := client.Post(base+"/v1/users", "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("add user: unexpected status %s", resp.Status)
	}
	return nil
}

func DeleteUser(client *http.Client, base string, id uuid.UUID) error {
	req, err := http.NewRequest("DELETE", base+"/v1/users/"+id.String(), nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("delete user: unexpected status %s", resp.Status)
	}
	return nil
}
