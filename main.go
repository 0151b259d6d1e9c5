// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
)

func main() {
	fmt.Println("🔄 go-offsync - Offline-First Sync Engine")
	fmt.Println("=========================================")
	fmt.Println()
	fmt.Println("go-offsync keeps a document-management client fully usable without")
	fmt.Println("connectivity: every mutation commits to local SQLite first, remote")
	fmt.Println("failures are absorbed into a durable job queue, and queued work is")
	fmt.Println("replayed in order once the network returns.")
	fmt.Println()

	fmt.Println("📦 Packages:")
	fmt.Println()
	fmt.Println("1. ⚙️  offsync - Engine core")
	fmt.Println("   Generic per-kind Coordinator, job queue contract, reconciliation,")
	fmt.Println("   connectivity oracle, event bus, retry policy")
	fmt.Println()
	fmt.Println("2. 💾 offsqlite - Local persistence")
	fmt.Println("   SQLite-backed record stores and the durable job queue")
	fmt.Println()
	fmt.Println("3. 🌐 offhttp - Remote boundary")
	fmt.Println("   Generic REST client with JWT bearer auth and device attribution")
	fmt.Println()
	fmt.Println("4. 📖 docsync - Entity services")
	fmt.Println("   Bookmarks, comments and libraries wired over a shared database,")
	fmt.Println("   with pause/resume replay and a scheduled sync loop")
	fmt.Println()

	fmt.Println("🚀 Quick Start:")
	fmt.Println()
	fmt.Println("   db, _ := offsqlite.Open(\"app.db\")")
	fmt.Println("   svc, _ := docsync.NewService(docsync.ServiceOptions{DB: db, Remotes: remotes})")
	fmt.Println("   bm, _ := svc.Bookmarks.Create(ctx, docsync.NewBookmark(docID, \"Chapter 3\", 41))")
	fmt.Println("   go svc.Run(ctx, 30*time.Second)")
	fmt.Println()
	fmt.Println("   Writes succeed immediately whether online or offline; identifiers")
	fmt.Println("   are reconciled with the server in the background.")
	fmt.Println()

	fmt.Println("📐 Guarantees:")
	fmt.Println("   • Local-first: callers never block on the network")
	fmt.Println("   • Durable: queued jobs survive restarts, replay FIFO per kind")
	fmt.Println("   • Bounded retries: 3 attempts, then the job is parked as failed")
	fmt.Println("   • One record per entity at every instant, even mid-reconciliation")
	fmt.Println()
	fmt.Println("See the package documentation for the full API.")
}
