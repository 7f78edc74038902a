package migrations

func init() {
	Migrations.MustRegister(execFile("2024112201_create_quizzes.sql"), dropTable("quizzes"))
}
