package compiler

import (
	"fmt"
	"strings"

	"github.com/dukex/flowforge/pkg/bindings"
	"github.com/dukex/flowforge/pkg/codegen"
	"github.com/dukex/flowforge/pkg/graph"
	"github.com/dukex/flowforge/pkg/models"
	"github.com/dukex/flowforge/pkg/nodes/toolio"
)

// WorkflowBindingName is the binding the fetch handler starts runs through
// when the module carries no self-referencing workflow binding of its own.
const WorkflowBindingName = "WORKFLOW"

// Trace event kinds written by the generated module.
const (
	TraceStart = "start"
	TraceEnd   = "end"
	TraceError = "error"
	TraceSkip  = "skip"
)

const traceHelper = `function __trace(eventKind, nodeId, nodeType, runId, error) {
  const record = { eventKind, nodeId, nodeType, timestamp: new Date().toISOString(), runId };
  if (error !== undefined) {
    record.error = String(error?.message ?? error);
  }
  console.log(JSON.stringify(record));
}`

const recordHelper = `function __record(value) {
  if (value !== null && typeof value === "object" && !Array.isArray(value)) {
    return { ...value, output: value };
  }
  return { output: value };
}`

type moduleInput struct {
	opts     Options
	graph    *graph.Context
	outputs  []nodeOutput
	guards   map[string]*guard
	bindings []*models.BindingConfiguration
}

// assemble writes the module. Everything it emits derives from its input so
// identical graphs produce identical text.
func assemble(in moduleInput) string {
	tool := toolSession(in.opts, in.bindings)

	w := codegen.NewWriter()
	w.Line("// Generated by flowforge from workflow %s. Do not edit.", codegen.Quote(in.opts.WorkflowID))

	if tool != nil {
		w.Line(`import { DurableObject, WorkflowEntrypoint } from "cloudflare:workers";`)
	} else {
		w.Line(`import { WorkflowEntrypoint } from "cloudflare:workers";`)
	}

	w.Blank()
	w.Block(traceHelper)
	w.Blank()
	w.Block(recordHelper)
	w.Blank()

	writeWorkflowClass(w, in)

	if tool != nil {
		w.Blank()
		writeToolSession(w, tool)
	}

	w.Blank()
	writeFetchHandler(w, EntrypointBinding(in.bindings, in.opts.ClassName), tool)

	return w.String()
}

func writeWorkflowClass(w *codegen.Writer, in moduleInput) {
	steps := make([]string, 0, len(in.outputs))
	for _, out := range in.outputs {
		steps = append(steps, out.step)
	}

	w.Open("export class %s extends WorkflowEntrypoint {", in.opts.ClassName)
	w.Open("async run(event, step) {")
	w.Line("const env = this.env;")
	w.Line("const runId = event?.instanceId ?? null;")
	w.Line("const state = {};")
	w.Line("const skipped = new Set();")
	w.Line("let %s;", strings.Join(steps, ", "))

	for _, out := range in.outputs {
		w.Blank()
		writeNode(w, out, in.guards[out.node.ID])
	}

	w.Blank()

	if step, ok := in.graph.StepName(in.graph.ExitNodeID); ok && in.graph.ExitNodeID != "" {
		w.Line("return %s ?? null;", step)
	} else {
		w.Line("return null;")
	}

	w.Close("}")
	w.Close("}")
}

func writeNode(w *codegen.Writer, out nodeOutput, g *guard) {
	id := codegen.Quote(out.node.ID)
	kind := codegen.Quote(out.node.Type)

	w.Line("// %s (%s)", singleLine(out.node.ID), singleLine(out.node.Type))

	if g != nil {
		w.Open("if (%s) {", g.condition())
	}

	w.Line("__trace(%q, %s, %s, runId);", TraceStart, id, kind)
	w.Open("try {")
	w.Block(out.result.Code)
	w.Reopen("} catch (error) {")
	w.Line("__trace(%q, %s, %s, runId, error);", TraceError, id, kind)
	w.Line("throw error;")
	w.Close("}")
	w.Line("state[%s] = __record(%s);", id, out.step)
	w.Line("__trace(%q, %s, %s, runId);", TraceEnd, id, kind)

	if g != nil {
		w.Reopen("} else {")
		w.Line("skipped.add(%s);", id)
		w.Line("__trace(%q, %s, %s, runId);", TraceSkip, id, kind)
		w.Close("}")
	}
}

func (g *guard) condition() string {
	if g.route != "" {
		return fmt.Sprintf("%s?.routes?.[%s]", g.source, codegen.Quote(g.route))
	}

	parts := make([]string, 0, len(g.upstream))
	for _, id := range g.upstream {
		parts = append(parts, fmt.Sprintf("!skipped.has(%s)", codegen.Quote(id)))
	}

	return strings.Join(parts, " || ")
}

type toolBundle struct {
	className       string
	sessionBinding  string
	workflowBinding string
}

func toolSession(opts Options, configs []*models.BindingConfiguration) *toolBundle {
	session := bindings.ToolSessionBindingName(opts.WorkflowID)
	workflow := bindings.ToolWorkflowBindingName(opts.WorkflowID)

	var hasSession, hasWorkflow bool

	for _, cfg := range configs {
		switch {
		case cfg.Name == session && cfg.Type == models.BindingTypeDurableObject:
			hasSession = true
		case cfg.Name == workflow && cfg.Type == models.BindingTypeWorkflow:
			hasWorkflow = true
		}
	}

	if !hasSession || !hasWorkflow {
		return nil
	}

	return &toolBundle{
		className:       bindings.ToolSessionClassName(opts.ClassName),
		sessionBinding:  session,
		workflowBinding: workflow,
	}
}

func writeToolSession(w *codegen.Writer, t *toolBundle) {
	w.Open("export class %s extends DurableObject {", t.className)
	w.Open("async fetch(request) {")
	w.Line("const url = new URL(request.url);")
	w.Open(`if (request.method === "POST" && url.pathname === "/call") {`)
	w.Line("const args = await request.json().catch(() => ({}));")
	w.Line("const session_id = this.ctx.id.toString();")
	w.Line("const instance = await this.env.%s.create({ params: { arguments: args, session_id } });", t.workflowBinding)
	w.Line("return Response.json({ session: session_id, runId: instance.id }, { status: 202 });")
	w.Close("}")
	w.Open(`if (request.method === "POST" && url.pathname === "/respond") {`)
	w.Line("const { runId, value } = await request.json();")
	w.Line(`await this.ctx.storage.put("result:" + runId, value ?? null);`)
	w.Line("return Response.json({ ok: true });")
	w.Close("}")
	w.Open(`if (request.method === "GET" && url.pathname === "/result") {`)
	w.Line(`const value = await this.ctx.storage.get("result:" + url.searchParams.get("runId"));`)
	w.Line("return Response.json({ ready: value !== undefined, value: value ?? null });")
	w.Close("}")
	w.Line(`return new Response("not found", { status: 404 });`)
	w.Close("}")
	w.Close("}")
	w.Blank()
	w.Open("async function %s(env, event, value) {", toolio.RespondHelper)
	w.Line("const session = event?.payload?.session_id;")
	w.Open("if (!session) {")
	w.Line("return;")
	w.Close("}")
	w.Line("const ns = env.%s;", t.sessionBinding)
	w.Open(`await ns.get(ns.idFromString(session)).fetch("https://tool-session/respond", {`)
	w.Line(`method: "POST",`)
	w.Line(`headers: { "content-type": "application/json" },`)
	w.Line("body: JSON.stringify({ runId: event?.instanceId ?? null, value }),")
	w.Close("});")
	w.Close("}")
}

func writeFetchHandler(w *codegen.Writer, binding string, tool *toolBundle) {
	w.Open("export default {")
	w.Open("async fetch(request, env) {")
	w.Line("const url = new URL(request.url);")

	if tool != nil {
		w.Open(`if (url.pathname.startsWith("/tool/")) {`)
		w.Line("const ns = env.%s;", tool.sessionBinding)
		w.Line(`const session = url.searchParams.get("session");`)
		w.Line("const id = session ? ns.idFromString(session) : ns.newUniqueId();")
		w.Line(`return ns.get(id).fetch(new Request(new URL(url.pathname.slice("/tool".length) + url.search, url.origin), request));`)
		w.Close("}")
	}

	w.Line(`const instanceId = url.searchParams.get("instanceId");`)
	w.Open(`if (request.method === "GET" && instanceId) {`)
	w.Line("const instance = await env.%s.get(instanceId);", binding)
	w.Line("return Response.json({ id: instanceId, status: await instance.status() });")
	w.Close("}")
	w.Open(`if (request.method !== "POST") {`)
	w.Line(`return new Response("method not allowed", { status: 405 });`)
	w.Close("}")
	w.Line("const params = await request.json().catch(() => ({}));")
	w.Line("const instance = await env.%s.create({ params });", binding)
	w.Line("return Response.json({ id: instance.id, status: await instance.status() }, { status: 202 });")
	w.Close("},")
	w.Close("};")
}

// EntrypointBinding names the workflow binding that points back at the
// compiled class: the tool bundle's when present, WorkflowBindingName otherwise.
func EntrypointBinding(configs []*models.BindingConfiguration, className string) string {
	for _, cfg := range configs {
		if cfg.Type == models.BindingTypeWorkflow && cfg.ClassName == className && cfg.ScriptName != "" {
			return cfg.Name
		}
	}

	return WorkflowBindingName
}

func singleLine(s string) string {
	return strings.NewReplacer("\n", " ", "\r", " ").Replace(s)
}
