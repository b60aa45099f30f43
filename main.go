// The main package for the mini-crawler executable.
package main

import (
	"github.com/Kolo-Naukowe-Data-Science-PW/Chatbot-MiNI/cmd"
)

func main() {
	cmd.Execute()
}
