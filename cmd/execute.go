package cmd

// Execute runs the root command. It is the single entry point called
// from main.
func Execute() error {
	return rootCmd.Execute()
}
