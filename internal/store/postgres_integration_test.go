// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

//go:build integration

package store_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/authkeep/authkeep/internal/store"
)

var _ = Describe("Connect", func() {
	It("opens a pool that passes the readiness check", func() {
		ctx := context.Background()
		pool, err := store.Connect(ctx, store.PoolConfig{URL: databaseURL, MaxConns: 4, ConnectRetries: 2}, nil)
		Expect(err).NotTo(HaveOccurred())
		defer pool.Close()

		Expect(pool.Config().MaxConns).To(Equal(int32(4)))
		Expect(store.ReadinessCheck(pool)(ctx)).To(Succeed())
	})
})
