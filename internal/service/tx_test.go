package service

import "context"

type testTxRepos struct {
	notes          NoteRepositoryInterface
	generationJobs GenerationJobRepositoryInterface
}

func (t *testTxRepos) Notes() NoteRepositoryInterface {
	return t.notes
}

func (t *testTxRepos) GenerationJobs() GenerationJobRepositoryInterface {
	return t.generationJobs
}

type testTxRunner struct {
	repos  TxRepositories
	called bool
}

func (t *testTxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	t.called = true
	return fn(t.repos)
}
