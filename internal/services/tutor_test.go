package services

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"tuteur-backend/internal/models"
)

func testProfile() Profile {
	p, _ := LookupProfile("droit")
	return p
}

func newTestTutor(t *testing.T, backend *fakeBackend, speech Synthesizer, profile Profile) *TutorService {
	t.Helper()
	lib := newTestLibrary(backend, writeCourse(t, "cours.pdf"))
	return NewTutorService(backend, lib, speech, nil, profile, testLogger())
}

func TestInitialize_PrimesConversation(t *testing.T) {
	backend := newFakeBackend()
	tutor := newTestTutor(t, backend, nil, testProfile())

	sess, err := tutor.Initialize(context.Background())
	if err != nil {
		t.Fatalf("Initialize err: %v", err)
	}

	turns := sess.Turns()
	if len(turns) != 2 {
		t.Fatalf("expected priming pair, got %d turns", len(turns))
	}
	if turns[0].Role != models.RoleUser || turns[0].Parts[0].Document == nil {
		t.Fatalf("first turn must carry the documents: %+v", turns[0])
	}
	if turns[1].Role != models.RoleAssistant || turns[1].Parts[0].Text != "Bien reçu. Je suis prêt." {
		t.Fatalf("second turn must be the acknowledgment: %+v", turns[1])
	}
	if len(sess.Transcript()) != 0 {
		t.Fatalf("expected empty transcript")
	}
	if len(backend.startHistory) != 2 {
		t.Fatalf("backend should be seeded with the priming pair, got %d", len(backend.startHistory))
	}
}

func TestInitialize_NoDocuments(t *testing.T) {
	backend := newFakeBackend()
	lib := newTestLibrary(backend, filepath.Join(t.TempDir(), "*.pdf"))
	tutor := NewTutorService(backend, lib, nil, nil, testProfile(), testLogger())

	for i := 0; i < 2; i++ {
		sess, err := tutor.Initialize(context.Background())
		if !errors.Is(err, ErrNoReferenceDocuments) {
			t.Fatalf("expected ErrNoReferenceDocuments, got %v", err)
		}
		if sess != nil {
			t.Fatalf("expected no session")
		}
	}
	if backend.startCalls != 0 {
		t.Fatalf("expected no backend session, got %d StartSession calls", backend.startCalls)
	}
}

func TestInitialize_BackendFailureThenRetry(t *testing.T) {
	backend := newFakeBackend()
	backend.uploadErr = errTransport
	tutor := newTestTutor(t, backend, nil, testProfile())
	ctx := context.Background()

	if _, err := tutor.Initialize(ctx); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
	if backend.startCalls != 0 {
		t.Fatalf("no session should start after upload failure")
	}

	backend.uploadErr = nil
	if _, err := tutor.Initialize(ctx); err != nil {
		t.Fatalf("retry Initialize err: %v", err)
	}
	if _, err := tutor.Initialize(ctx); err != nil {
		t.Fatalf("second Initialize err: %v", err)
	}
	if got := backend.uploadCount(); got != 1 {
		t.Fatalf("expected documents uploaded once, got %d", got)
	}
}

func TestSubmit_TextTurn(t *testing.T) {
	backend := newFakeBackend()
	tutor := newTestTutor(t, backend, nil, testProfile())
	ctx := context.Background()

	sess, err := tutor.Initialize(ctx)
	if err != nil {
		t.Fatalf("Initialize err: %v", err)
	}

	reply, err := tutor.Submit(ctx, sess, models.TextInput("What is public service?"))
	if err != nil {
		t.Fatalf("Submit err: %v", err)
	}
	if reply.Text != "Réponse du cours." {
		t.Fatalf("unexpected reply: %q", reply.Text)
	}
	if reply.Speech != nil {
		t.Fatalf("speech should be off by default")
	}

	tr := sess.Transcript()
	if len(tr) != 2 {
		t.Fatalf("expected 2 transcript entries, got %d", len(tr))
	}
	if tr[0].Role != models.RoleUser || tr[0].Content != "What is public service?" {
		t.Fatalf("unexpected user entry: %+v", tr[0])
	}
	if tr[1].Role != models.RoleAssistant || tr[1].Content != "Réponse du cours." {
		t.Fatalf("unexpected assistant entry: %+v", tr[1])
	}

	sent := backend.chat.sent
	if len(sent) != 1 || len(sent[0]) != 1 || sent[0][0].Text != "What is public service?" {
		t.Fatalf("backend should get the raw text only, got %+v", sent)
	}
}

func TestSubmit_TranscriptGrowsByTwoPerTurn(t *testing.T) {
	backend := newFakeBackend()
	tutor := newTestTutor(t, backend, nil, testProfile())
	ctx := context.Background()

	sess, _ := tutor.Initialize(ctx)
	questions := []string{"Q1", "Q2", "Q3", "Q4"}
	for _, q := range questions {
		if _, err := tutor.Submit(ctx, sess, models.TextInput(q)); err != nil {
			t.Fatalf("Submit %s err: %v", q, err)
		}
	}

	tr := sess.Transcript()
	if len(tr) != 2*len(questions) {
		t.Fatalf("expected %d entries, got %d", 2*len(questions), len(tr))
	}
	for i, q := range questions {
		if tr[2*i].Content != q || tr[2*i].Role != models.RoleUser {
			t.Fatalf("entry %d: expected user %q, got %+v", 2*i, q, tr[2*i])
		}
		if tr[2*i+1].Role != models.RoleAssistant {
			t.Fatalf("entry %d: expected assistant", 2*i+1)
		}
	}

	turns := sess.Turns()
	if len(turns) != 2+2*len(questions) {
		t.Fatalf("expected %d turns, got %d", 2+2*len(questions), len(turns))
	}
	for _, parts := range backend.chat.sent {
		for _, p := range parts {
			if p.Document != nil {
				t.Fatalf("priming documents must not be re-sent")
			}
		}
	}
	if backend.startCalls != 1 {
		t.Fatalf("expected one backend session, got %d", backend.startCalls)
	}
}

func TestSubmit_EmptyText(t *testing.T) {
	backend := newFakeBackend()
	tutor := newTestTutor(t, backend, nil, testProfile())
	ctx := context.Background()
	sess, _ := tutor.Initialize(ctx)

	if _, err := tutor.Submit(ctx, sess, models.TextInput("   ")); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	if len(sess.Transcript()) != 0 {
		t.Fatalf("transcript must be untouched")
	}
}

func TestSubmit_BackendFailureKeepsUserEntry(t *testing.T) {
	backend := newFakeBackend()
	tutor := newTestTutor(t, backend, nil, testProfile())
	ctx := context.Background()
	sess, _ := tutor.Initialize(ctx)

	backend.chat.err = errTransport
	_, err := tutor.Submit(ctx, sess, models.TextInput("Qu'est-ce qu'un EPA ?"))
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
	if !errors.Is(err, errTransport) {
		t.Fatalf("expected the transport cause to be wrapped, got %v", err)
	}

	tr := sess.Transcript()
	if len(tr) != 1 || tr[0].Role != models.RoleUser {
		t.Fatalf("expected only the user entry, got %+v", tr)
	}
	if len(sess.Turns()) != 2 {
		t.Fatalf("conversation must not grow on failure")
	}

	backend.chat.err = nil
	if _, err := tutor.Submit(ctx, sess, models.TextInput("Qu'est-ce qu'un EPA ?")); err != nil {
		t.Fatalf("resubmit err: %v", err)
	}
	if got := len(sess.Transcript()); got != 3 {
		t.Fatalf("expected 3 entries after resubmission, got %d", got)
	}
}

func TestSubmit_Audio(t *testing.T) {
	backend := newFakeBackend()
	tutor := newTestTutor(t, backend, nil, testProfile())
	ctx := context.Background()
	sess, _ := tutor.Initialize(ctx)
	docUploads := backend.uploadCount()

	if _, err := tutor.Submit(ctx, sess, models.AudioInput(wavHeader())); err != nil {
		t.Fatalf("Submit audio err: %v", err)
	}

	tr := sess.Transcript()
	if len(tr) != 2 || tr[0].Content != testProfile().AudioPlaceholder {
		t.Fatalf("expected placeholder user entry, got %+v", tr)
	}
	if got := backend.uploadCount() - docUploads; got != 1 {
		t.Fatalf("expected audio uploaded once, got %d", got)
	}
	if backend.uploadMIME[len(backend.uploadMIME)-1] != "audio/wav" {
		t.Fatalf("unexpected audio mime %s", backend.uploadMIME[len(backend.uploadMIME)-1])
	}

	parts := backend.chat.sent[0]
	if len(parts) != 2 || parts[0].Text != testProfile().AudioInstruction || parts[1].Document == nil {
		t.Fatalf("expected instruction + audio reference, got %+v", parts)
	}

	if _, err := tutor.Submit(ctx, sess, models.AudioInput(wavHeader())); err != nil {
		t.Fatalf("second Submit audio err: %v", err)
	}
	if got := backend.uploadCount() - docUploads; got != 2 {
		t.Fatalf("audio must be uploaded per submission, got %d uploads", got)
	}
}

func TestSubmit_InvalidAudioHasNoSideEffects(t *testing.T) {
	backend := newFakeBackend()
	tutor := newTestTutor(t, backend, nil, testProfile())
	ctx := context.Background()
	sess, _ := tutor.Initialize(ctx)
	uploads := backend.uploadCount()

	for _, data := range [][]byte{nil, {}, []byte("not audio at all")} {
		if _, err := tutor.Submit(ctx, sess, models.AudioInput(data)); !errors.Is(err, ErrInvalidAudioInput) {
			t.Fatalf("expected ErrInvalidAudioInput, got %v", err)
		}
	}

	if len(sess.Transcript()) != 0 || len(sess.Turns()) != 2 {
		t.Fatalf("invalid audio must not mutate the session")
	}
	if backend.uploadCount() != uploads || backend.chat.sentCount() != 0 {
		t.Fatalf("invalid audio must not reach the backend")
	}
}

func TestSubmit_AudioUploadFailure(t *testing.T) {
	backend := newFakeBackend()
	tutor := newTestTutor(t, backend, nil, testProfile())
	ctx := context.Background()
	sess, _ := tutor.Initialize(ctx)

	backend.uploadErr = errTransport
	if _, err := tutor.Submit(ctx, sess, models.AudioInput(wavHeader())); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
	if backend.chat.sentCount() != 0 {
		t.Fatalf("nothing should be sent when the audio upload fails")
	}
	if len(sess.Transcript()) != 1 {
		t.Fatalf("expected the placeholder entry to remain")
	}
}

func TestSubmit_AudioDisabled(t *testing.T) {
	profile := testProfile()
	profile.AudioInputEnabled = false
	backend := newFakeBackend()
	tutor := newTestTutor(t, backend, nil, profile)
	ctx := context.Background()
	sess, _ := tutor.Initialize(ctx)

	_, err := tutor.Submit(ctx, sess, models.AudioInput(wavHeader()))
	var fd *FeatureDisabledError
	if !errors.As(err, &fd) {
		t.Fatalf("expected FeatureDisabledError, got %v", err)
	}
}

func TestRequestQuiz(t *testing.T) {
	backend := newFakeBackend()
	backend.chat.reply = "Question : qu'est-ce que l'arrêt Blanco ?"
	tutor := newTestTutor(t, backend, nil, testProfile())
	ctx := context.Background()
	sess, _ := tutor.Initialize(ctx)

	reply, err := tutor.RequestQuiz(ctx, sess)
	if err != nil {
		t.Fatalf("RequestQuiz err: %v", err)
	}
	if !strings.Contains(reply.Text, "Blanco") {
		t.Fatalf("unexpected reply %q", reply.Text)
	}

	tr := sess.Transcript()
	if len(tr) != 1 || tr[0].Role != models.RoleAssistant {
		t.Fatalf("expected exactly one assistant entry, got %+v", tr)
	}
	if backend.chat.sent[0][0].Text != testProfile().QuizInstruction {
		t.Fatalf("backend should receive the hidden instruction")
	}
	turns := sess.Turns()
	if len(turns) != 4 || turns[2].Role != models.RoleUser {
		t.Fatalf("the instruction is part of the conversation, got %d turns", len(turns))
	}
}

func TestRequestQuiz_Disabled(t *testing.T) {
	profile := testProfile()
	profile.QuizEnabled = false
	backend := newFakeBackend()
	tutor := newTestTutor(t, backend, nil, profile)
	ctx := context.Background()
	sess, _ := tutor.Initialize(ctx)

	var fd *FeatureDisabledError
	if _, err := tutor.RequestQuiz(ctx, sess); !errors.As(err, &fd) {
		t.Fatalf("expected FeatureDisabledError, got %v", err)
	}
	if backend.chat.sentCount() != 0 {
		t.Fatalf("disabled quiz must not reach the backend")
	}
}

func TestSpeechPolicy(t *testing.T) {
	tests := []struct {
		name          string
		toggle        bool
		onAudio       bool
		sessionToggle bool
		input         models.TurnInput
		wantSpeech    bool
	}{
		{"toggle off, text", true, false, false, models.TextInput("Bonjour"), false},
		{"toggle on, text", true, false, true, models.TextInput("Bonjour"), true},
		{"toggle unavailable, text", false, false, true, models.TextInput("Bonjour"), false},
		{"audio forces speech", true, true, false, models.AudioInput(wavHeader()), true},
		{"audio without forcing", true, false, false, models.AudioInput(wavHeader()), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			profile := testProfile()
			profile.SpeechToggle = tc.toggle
			profile.SpeechOnAudioInput = tc.onAudio

			synth := &fakeSynthesizer{}
			backend := newFakeBackend()
			tutor := newTestTutor(t, backend, synth, profile)
			ctx := context.Background()
			sess, _ := tutor.Initialize(ctx)
			sess.SetSpeechEnabled(tc.sessionToggle)

			reply, err := tutor.Submit(ctx, sess, tc.input)
			if err != nil {
				t.Fatalf("Submit err: %v", err)
			}
			if (reply.Speech != nil) != tc.wantSpeech {
				t.Fatalf("expected speech=%v, got %v", tc.wantSpeech, reply.Speech != nil)
			}
		})
	}
}

func TestSubmit_SpeechUsesSpeakableText(t *testing.T) {
	backend := newFakeBackend()
	backend.chat.reply = "**CE, 1933, Benjamin** p. 12, voir le Pr. Coulibaly"
	synth := &fakeSynthesizer{}
	tutor := newTestTutor(t, backend, synth, testProfile())
	ctx := context.Background()
	sess, _ := tutor.Initialize(ctx)
	sess.SetSpeechEnabled(true)

	reply, err := tutor.Submit(ctx, sess, models.TextInput("Arrêt Benjamin ?"))
	if err != nil {
		t.Fatalf("Submit err: %v", err)
	}
	if reply.Speech == nil {
		t.Fatalf("expected speech")
	}
	if synth.texts[0] != "CE, 1933, Benjamin page 12, voir le Professeur Coulibaly" {
		t.Fatalf("unexpected speakable text %q", synth.texts[0])
	}
	if synth.langs[0] != "fr" {
		t.Fatalf("expected french voice, got %q", synth.langs[0])
	}
	if reply.Text != backend.chat.reply {
		t.Fatalf("reply text must keep its markup")
	}
}

func TestSubmit_SpeechFailureIsSoft(t *testing.T) {
	backend := newFakeBackend()
	synth := &fakeSynthesizer{err: errors.New("quota exceeded")}
	tutor := newTestTutor(t, backend, synth, testProfile())
	ctx := context.Background()
	sess, _ := tutor.Initialize(ctx)
	sess.SetSpeechEnabled(true)

	reply, err := tutor.Submit(ctx, sess, models.TextInput("Question"))
	if err != nil {
		t.Fatalf("speech failure must not fail the turn: %v", err)
	}
	if reply.Speech != nil || reply.SpeechWarning == "" {
		t.Fatalf("expected a warning and no audio, got %+v", reply)
	}
	if len(sess.Transcript()) != 2 {
		t.Fatalf("text reply must be recorded")
	}
}

func TestSubmit_NotifiesProgress(t *testing.T) {
	backend := newFakeBackend()
	notifier := &recordingNotifier{}
	lib := newTestLibrary(backend, writeCourse(t, "cours.pdf"))
	tutor := NewTutorService(backend, lib, &fakeSynthesizer{}, notifier, testProfile(), testLogger())
	ctx := context.Background()
	sess, _ := tutor.Initialize(ctx)
	sess.SetSpeechEnabled(true)

	if _, err := tutor.Submit(ctx, sess, models.TextInput("Question")); err != nil {
		t.Fatalf("Submit err: %v", err)
	}

	var types []string
	for _, e := range notifier.events {
		types = append(types, e.Type)
	}
	got := strings.Join(types, ",")
	if got != "status_update,reply,status_update" {
		t.Fatalf("unexpected event sequence %s", got)
	}
}

func TestSubmit_ConcurrentTurnsAreSerialized(t *testing.T) {
	backend := newFakeBackend()
	tutor := newTestTutor(t, backend, nil, testProfile())
	ctx := context.Background()
	sess, _ := tutor.Initialize(ctx)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tutor.Submit(ctx, sess, models.TextInput("Q"))
		}()
	}
	wg.Wait()

	tr := sess.Transcript()
	if len(tr) != 40 {
		t.Fatalf("expected 40 entries, got %d", len(tr))
	}
	for i := 0; i < len(tr); i += 2 {
		if tr[i].Role != models.RoleUser || tr[i+1].Role != models.RoleAssistant {
			t.Fatalf("turns interleaved at %d", i)
		}
	}
}

func TestSessions_AreIndependent(t *testing.T) {
	backend := newFakeBackend()
	tutor := newTestTutor(t, backend, nil, testProfile())
	ctx := context.Background()

	a, _ := tutor.Initialize(ctx)
	b, _ := tutor.Initialize(ctx)
	if a.ID == b.ID {
		t.Fatalf("sessions must have distinct ids")
	}

	tutor.Submit(ctx, a, models.TextInput("Q"))
	if len(b.Transcript()) != 0 {
		t.Fatalf("submitting on one session must not touch another")
	}
}
