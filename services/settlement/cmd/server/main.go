package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/nooterra/settld/pkg/db"
	"github.com/nooterra/settld/services/settlement/internal/store"
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	pool := db.MustConnect(ctx)
	st := store.New(pool)
	if err := st.EnsureSchema(ctx); err != nil {
		log.Fatalf("ensure schema: %v", err)
	}

	port := os.Getenv("SERVICE_PORT")
	if port == "" {
		port = "8090"
	}

	log.Printf("settlement service listening on :%s", port)
	if err := http.ListenAndServe(":"+port, newRouter(st)); err != nil {
		log.Fatal(err)
	}
}
