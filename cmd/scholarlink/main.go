package main

import (
	"os"

	"github.com/PruthvirajGire18/scholarlink-backend/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
